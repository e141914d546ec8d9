package tbl

import (
	"fmt"
	"strconv"

	"github.com/ValentinKolb/dTable/lib/db"
	"github.com/ValentinKolb/dTable/lib/store"
	"github.com/spf13/cobra"
)

var (
	mktableCmd = &cobra.Command{
		Use:   "mktable [table] [attr...]",
		Short: "Registers a table with the given attribute names",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]
			attrs := args[1:]
			prov := tblStore.(store.ITableProvisioner)
			if err := prov.CreateTable(table, attrs); err != nil {
				return err
			}
			if err := saveStore(); err != nil {
				return err
			}
			fmt.Printf("table %s created with attributes %v\n", table, attrs)
			return nil
		},
	}
	insertCmd = &cobra.Command{
		Use:   "insert [table] [key] [field...]",
		Short: "Inserts a record under its key, fails if the key exists",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]
			rec := db.Record{table, parseKey(args[1])}
			for _, arg := range args[2:] {
				rec = append(rec, parseField(arg))
			}
			inserted, err := tblStore.Insert(table, rec)
			if err != nil {
				return err
			}
			if err := saveStore(); err != nil {
				return err
			}
			fmt.Printf("inserted %v\n", inserted)
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [table] [key]",
		Short: "Reads the record stored under a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, loaded, err := tblStore.Get(args[0], parseKey(args[1]))
			if err != nil {
				return err
			}
			fmt.Printf("key=%v, found=%t, rec=%v\n", args[1], loaded, rec)
			return nil
		},
	}
	updateCmd = &cobra.Command{
		Use:   "update [table] [key] [field...]",
		Short: "Merges a patch into the stored record ('_' keeps the stored field)",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]
			key := parseKey(args[1])
			patch := db.Record{table, key}
			for _, arg := range args[2:] {
				patch = append(patch, parseField(arg))
			}
			merged, err := tblStore.Update(table, key, patch)
			if err != nil {
				return err
			}
			if err := saveStore(); err != nil {
				return err
			}
			fmt.Printf("updated %v\n", merged)
			return nil
		},
	}
	deleteCmd = &cobra.Command{
		Use:   "delete [table] [key]",
		Short: "Deletes the record stored under a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			deleted, err := tblStore.Delete(args[0], parseKey(args[1]))
			if err != nil {
				return err
			}
			if err := saveStore(); err != nil {
				return err
			}
			fmt.Printf("deleted key=%v\n", deleted)
			return nil
		},
	}
	selectCmd = &cobra.Command{
		Use:   "select [table]",
		Short: "Lists records in key order, optionally filtered by a field value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return err
			}
			where, err := cmd.Flags().GetString("where")
			if err != nil {
				return err
			}

			spec := func(db.Record) bool { return true }
			if where != "" {
				idx, want, err := parseWhere(where)
				if err != nil {
					return err
				}
				spec = func(rec db.Record) bool {
					return idx < len(rec) && rec[idx] == want
				}
			}

			recs, err := tblStore.Select(args[0], spec, limit)
			if err != nil {
				return err
			}
			for _, rec := range recs {
				fmt.Printf("%v\n", rec)
			}
			fmt.Printf("%d record(s)\n", len(recs))
			return nil
		},
	}
	countCmd = &cobra.Command{
		Use:   "count [table]",
		Short: "Prints the number of records in a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := tblStore.Count(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("count=%d\n", n)
			return nil
		},
	}
	idCmd = &cobra.Command{
		Use:   "id [table] [increment]",
		Short: "Advances the table's sequence counter and prints the new value",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			increment := int64(1)
			if len(args) == 2 {
				var err error
				increment, err = strconv.ParseInt(args[1], 10, 64)
				if err != nil {
					return fmt.Errorf("increment must be a number: %w", err)
				}
			}
			id, err := tblStore.NextID(args[0], increment)
			if err != nil {
				return err
			}
			if err := saveStore(); err != nil {
				return err
			}
			fmt.Printf("id=%d\n", id)
			return nil
		},
	}
	firstCmd = &cobra.Command{
		Use:   "first [table]",
		Short: "Prints the smallest key of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, ok, err := tblStore.First(args[0])
			if err != nil {
				return err
			}
			printKey(key, ok)
			return nil
		},
	}
	nextCmd = &cobra.Command{
		Use:   "next [table] [key]",
		Short: "Prints the smallest key greater than the given key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, ok, err := tblStore.Next(args[0], parseKey(args[1]))
			if err != nil {
				return err
			}
			printKey(key, ok)
			return nil
		},
	}
	prevCmd = &cobra.Command{
		Use:   "prev [table] [key]",
		Short: "Prints the largest key smaller than the given key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, ok, err := tblStore.Prev(args[0], parseKey(args[1]))
			if err != nil {
				return err
			}
			printKey(key, ok)
			return nil
		},
	}
	lastCmd = &cobra.Command{
		Use:   "last [table]",
		Short: "Prints the largest key of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, ok, err := tblStore.Last(args[0])
			if err != nil {
				return err
			}
			printKey(key, ok)
			return nil
		},
	}
	attrsCmd = &cobra.Command{
		Use:   "attrs [table]",
		Short: "Prints the declared attribute names of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			attrs, err := tblStore.Attributes(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("attributes=%v\n", attrs)
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints metadata about the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := tblStore.GetDBInfo()
			if err != nil {
				return err
			}
			fmt.Printf("type=%s, tables=%d, records=%d, features=%v\n",
				info.DbType, info.NumTables, info.NumRecords, info.SupportedFeatures)
			return nil
		},
	}
)

func init() {
	selectCmd.Flags().Int("limit", 0, "Maximum number of records to return (0 for all)")
	selectCmd.Flags().String("where", "", "Filter in the form INDEX=VALUE matching the record field at INDEX")
}

// parseWhere splits an INDEX=VALUE filter expression.
func parseWhere(where string) (int, any, error) {
	for i := 0; i < len(where); i++ {
		if where[i] == '=' {
			idx, err := strconv.Atoi(where[:i])
			if err != nil {
				return 0, nil, fmt.Errorf("invalid field index %q: %w", where[:i], err)
			}
			return idx, parseKey(where[i+1:]), nil
		}
	}
	return 0, nil, fmt.Errorf("invalid filter %q (expected INDEX=VALUE)", where)
}

func printKey(key any, ok bool) {
	if !ok {
		fmt.Println("end of table")
		return
	}
	fmt.Printf("key=%v\n", key)
}
