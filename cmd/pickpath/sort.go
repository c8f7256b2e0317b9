package main

import (
	"fmt"
	"strings"

	"github.com/Veraticus/pickpath/internal/common"
	"github.com/Veraticus/pickpath/internal/engine"
	"github.com/spf13/cobra"
)

func sortCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sort [item...]",
		Short: "Order a shopping list with the latest snapshot",
		Long: `Sort orders the given items the way the server would for a scanner.

At the start stage the first item stays first and the rest follow by
proximity. At the mid stage --anchor names the item just picked; it is left
out of the result.`,
		Example: `  pickpath sort milk bread eggs apples
  pickpath sort --stage mid --anchor eggs milk bread apples
  pickpath sort --items "milk, bread, eggs"`,
		RunE: runSort,
	}

	cmd.Flags().String("stage", string(engine.StageStart), "sort stage: start, mid or end")
	cmd.Flags().String("anchor", "", "item just picked (mid stage)")
	cmd.Flags().String("items", "", "comma separated list, as an alternative to arguments")

	return cmd
}

func runSort(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rawStage, _ := cmd.Flags().GetString("stage")
	stage, err := engine.ParseStage(rawStage)
	if err != nil {
		return common.NewUserError("unknown stage "+rawStage, err)
	}
	anchor, _ := cmd.Flags().GetString("anchor")
	list, _ := cmd.Flags().GetString("items")

	items := append([]string(nil), args...)
	for _, item := range strings.Split(list, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return common.NewUserError("nothing to sort", nil)
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	e, err := initEngine(ctx, store)
	if err != nil {
		return err
	}

	out, err := e.Sort(ctx, stage, anchor, items)
	if err != nil {
		return noData(err)
	}

	for i, item := range out {
		fmt.Printf("%2d. %s\n", i+1, item) //nolint:forbidigo // User-facing output
	}
	return nil
}
