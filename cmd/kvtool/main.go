// Command kvtool is a thin, single-shot CLI over pkg/kv.Router. It is
// not an interactive menu frontend — it takes one operation per
// invocation from argv and exits — but it exercises only Router's
// public operations, the same boundary an external frontend would be
// held to.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"

	"github.com/skshohagmiah/kvtiered/pkg/kv"
)

func main() {
	compactPath := flag.String("compact", "kvtool.kvs", "compact store file path")
	shardPrefix := flag.String("shards", "kvtool_shards", "shard file prefix")
	ramLimit := flag.Int64("ram-limit", kv.DefaultRAMLimit, "RAM budget in bytes")
	diskLimit := flag.Int64("disk-limit", kv.DefaultDiskLimit, "disk budget in bytes")
	shardCount := flag.Int("shard-count", kv.DefaultShardCount, "number of shard files")
	largeValue := flag.Int64("large-value-threshold", kv.DefaultLargeValueThreshold, "bytes above which a value always goes to the shard store")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		log.Fatalf("usage: kvtool [flags] <set|get|delete|keys|scan-prefix|scan-value|save> ...")
	}

	router, err := kv.NewWithConfig(kv.Config{
		CompactPath:         *compactPath,
		ShardPrefix:         *shardPrefix,
		RAMLimit:            *ramLimit,
		DiskLimit:           *diskLimit,
		ShardCount:          *shardCount,
		LargeValueThreshold: *largeValue,
	})
	if err != nil {
		log.Fatalf("open database: %v", err)
	}

	if err := dispatch(router, args[0], args[1:]); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

func dispatch(router *kv.Router, op string, args []string) error {
	switch op {
	case "set":
		if len(args) != 2 {
			return fmt.Errorf("set <key> <value>")
		}
		if err := router.Set(args[0], []byte(args[1])); err != nil {
			return err
		}
		return router.Save()

	case "get":
		if len(args) != 1 {
			return fmt.Errorf("get <key>")
		}
		value, ok, err := router.Get(args[0])
		if err != nil {
			return err
		}
		if !ok {
			color.Yellow("(absent)")
			return nil
		}
		fmt.Println(string(value))
		return nil

	case "delete":
		if len(args) != 1 {
			return fmt.Errorf("delete <key>")
		}
		if err := router.Delete(args[0]); err != nil {
			return err
		}
		return router.Save()

	case "keys":
		keys, err := router.GetAllKeys()
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Println(k)
		}
		color.Cyan("%d keys", len(keys))
		return nil

	case "scan-prefix":
		if len(args) != 1 {
			return fmt.Errorf("scan-prefix <prefix>")
		}
		keys, err := router.SearchKeysForPrefix(args[0])
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Println(k)
		}
		return nil

	case "scan-value":
		if len(args) != 1 {
			return fmt.Errorf("scan-value <value>")
		}
		keys, err := router.SearchKeysForValue([]byte(args[0]))
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Println(k)
		}
		return nil

	case "save":
		return router.Save()

	default:
		return fmt.Errorf("unknown operation %q", op)
	}
}
