// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Command anvilctl is a thin cobra-based smoke harness for manually poking
// a store from the shell: open/create a table, insert, remove, get,
// iterate, digest, combine, maintain. It is not part of the library's
// contract — a stand-in for original_source/main++.cpp's ad hoc shell
// commands, kept separate from the anvil package itself.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/anvildb/anvil"
	"github.com/anvildb/anvil/internal/managed"
)

var (
	dirFlag     string
	tableFlag   string
	keyTypeFlag string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "anvilctl:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "anvilctl",
		Short: "Manual smoke-testing driver for an anvil store",
	}
	root.PersistentFlags().StringVar(&dirFlag, "dir", "./anvildb", "store directory")
	root.PersistentFlags().StringVar(&tableFlag, "table", "default", "table name within the store")
	root.PersistentFlags().StringVar(&keyTypeFlag, "keytype", "string", "key type: uint32, double, string, or blob")

	root.AddCommand(
		newOpenCmd(),
		newInsertCmd(),
		newRemoveCmd(),
		newGetCmd(),
		newIterateCmd(),
		newDigestCmd(),
		newCombineCmd(),
		newMaintainCmd(),
	)
	return root
}

func parseKeyType(s string) (anvil.KeyType, error) {
	switch s {
	case "uint32":
		return anvil.KeyTypeUint32, nil
	case "double":
		return anvil.KeyTypeDouble, nil
	case "string":
		return anvil.KeyTypeString, nil
	case "blob":
		return anvil.KeyTypeBlob, nil
	default:
		return 0, fmt.Errorf("unknown keytype %q (want uint32, double, string, or blob)", s)
	}
}

func parseKey(kt anvil.KeyType, s string) (anvil.Key, error) {
	switch kt {
	case anvil.KeyTypeUint32:
		v, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return anvil.Key{}, err
		}
		return anvil.NewUint32Key(uint32(v)), nil
	case anvil.KeyTypeDouble:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return anvil.Key{}, err
		}
		return anvil.NewDoubleKey(v), nil
	case anvil.KeyTypeString:
		return anvil.NewStringKey(s), nil
	case anvil.KeyTypeBlob:
		return anvil.NewBlobKey([]byte(s)), nil
	default:
		return anvil.Key{}, fmt.Errorf("unknown keytype %v", kt)
	}
}

// openManaged opens db's table as a concrete *managed.Managed, the only
// class with Digest/Combine/Maintain, creating both the store and the
// table on first use so every subcommand is independently runnable.
func openManaged() (*anvil.DB, *managed.Managed, error) {
	kt, err := parseKeyType(keyTypeFlag)
	if err != nil {
		return nil, nil, err
	}
	db, err := anvil.Open(dirFlag, nil)
	if err != nil {
		return nil, nil, err
	}
	dt, err := db.OpenTable(tableFlag, anvil.TableConfig{})
	if anvil.IsErrorKind(err, anvil.ErrKindNotFound) || anvil.IsErrorKind(err, anvil.ErrIoError) {
		if cerr := db.CreateTable(tableFlag, kt, anvil.TableConfig{}); cerr != nil {
			db.Close()
			return nil, nil, cerr
		}
		dt, err = db.OpenTable(tableFlag, anvil.TableConfig{})
	}
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	m, ok := dt.(*managed.Managed)
	if !ok {
		db.Close()
		return nil, nil, fmt.Errorf("table %q is class %T, not a managed dtable", tableFlag, dt)
	}
	return db, m, nil
}

func newOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open",
		Short: "Create the table if absent, then report its size",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, m, err := openManaged()
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Printf("table %q: keytype=%s size=%d disk-runs=%d\n", tableFlag, m.KeyType(), m.Size(), m.DiskDtables())
			return nil
		},
	}
}

func newInsertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "insert <key> <value>",
		Short: "Insert key=value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, m, err := openManaged()
			if err != nil {
				return err
			}
			defer db.Close()
			key, err := parseKey(m.KeyType(), args[0])
			if err != nil {
				return err
			}
			return m.Insert(key, anvil.Value{Exists: true, Bytes: []byte(args[1])}, false)
		},
	}
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <key>",
		Short: "Remove key (writes a tombstone)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, m, err := openManaged()
			if err != nil {
				return err
			}
			defer db.Close()
			key, err := parseKey(m.KeyType(), args[0])
			if err != nil {
				return err
			}
			return m.Remove(key)
		},
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Look up key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, m, err := openManaged()
			if err != nil {
				return err
			}
			defer db.Close()
			key, err := parseKey(m.KeyType(), args[0])
			if err != nil {
				return err
			}
			v, err := m.Lookup(key)
			if err != nil {
				return err
			}
			switch {
			case !v.Exists:
				fmt.Println("(not found)")
			case v.IsTombstone():
				fmt.Println("(tombstone)")
			default:
				fmt.Println(string(v.Bytes))
			}
			return nil
		},
	}
}

// formatKey prints a key the way its own type renders, since base.Key's
// String() method returns only the string-typed branch's payload.
func formatKey(k anvil.Key) string {
	switch k.Type() {
	case anvil.KeyTypeUint32:
		return strconv.FormatUint(uint64(k.Uint32()), 10)
	case anvil.KeyTypeDouble:
		return strconv.FormatFloat(k.Double(), 'g', -1, 64)
	case anvil.KeyTypeString:
		return k.String()
	case anvil.KeyTypeBlob:
		return fmt.Sprintf("%x", k.Blob())
	default:
		return "?"
	}
}

func newIterateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "iterate",
		Short: "Print every live key=value pair in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, m, err := openManaged()
			if err != nil {
				return err
			}
			defer db.Close()
			it, err := m.Iterator()
			if err != nil {
				return err
			}
			defer it.Close()
			for ok := it.First(); ok; ok = it.Next() {
				v, err := it.Value()
				if err != nil {
					return err
				}
				if v.IsTombstone() {
					continue
				}
				fmt.Printf("%s = %s\n", formatKey(it.Key()), string(v.Bytes))
			}
			return nil
		},
	}
}

func newDigestCmd() *cobra.Command {
	var background bool
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Force the memtable out to a new on-disk run",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, m, err := openManaged()
			if err != nil {
				return err
			}
			defer db.Close()
			return m.Digest(background)
		},
	}
	cmd.Flags().BoolVar(&background, "background", false, "run asynchronously")
	return cmd
}

func newCombineCmd() *cobra.Command {
	var first, last int
	var background bool
	cmd := &cobra.Command{
		Use:   "combine",
		Short: "Fold disk runs [first,last) (or the memtable too, at last=DiskDtables()+1) into one",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, m, err := openManaged()
			if err != nil {
				return err
			}
			defer db.Close()
			return m.Combine(first, last, background)
		},
	}
	cmd.Flags().IntVar(&first, "first", 0, "first disk run index, inclusive")
	cmd.Flags().IntVar(&last, "last", 0, "last disk run index, exclusive (DiskDtables()+1 folds in the memtable)")
	cmd.Flags().BoolVar(&background, "background", false, "run asynchronously")
	return cmd
}

func newMaintainCmd() *cobra.Command {
	var force, background bool
	cmd := &cobra.Command{
		Use:   "maintain",
		Short: "Run the digest/combine maintenance policy once",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, m, err := openManaged()
			if err != nil {
				return err
			}
			defer db.Close()
			return m.Maintain(force, background)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "run even if the policy thresholds aren't met")
	cmd.Flags().BoolVar(&background, "background", false, "run asynchronously")
	return cmd
}
