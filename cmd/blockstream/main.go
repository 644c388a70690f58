// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Command blockstream is a thin shell wrapper around the blockstream
// container format: create, append to, read, and inspect container files.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/blocklayer/blockstream/berrors"
	"github.com/blocklayer/blockstream/blockstream"
	"github.com/blocklayer/blockstream/blog"
	"github.com/blocklayer/blockstream/transform"
	_ "github.com/blocklayer/blockstream/transform/aead"
	_ "github.com/blocklayer/blockstream/transform/checksum"
	_ "github.com/blocklayer/blockstream/transform/flate"
	_ "github.com/blocklayer/blockstream/transform/lz4"
)

var (
	blockSizeFlag = flag.Int("block-size", blockstream.DefaultBlockSize, "logical block size B")
	codecFlag     = flag.String("codec", "", "transformer config string, e.g. \"lz4\" or \"aead chacha20poly1305 <passphrase>\" (empty: identity)")
)

func main() {
	blog.AddFlags()
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "create":
		err = runCreate(args[1:])
	case "append":
		err = runAppend(args[1:])
	case "cat":
		err = runCat(args[1:])
	case "inspect":
		err = runInspect(args[1:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		blog.Fatal(err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: blockstream [flags] <command> <path> [...]

commands:
  create <path>    create an empty container at path
  append <path>    append stdin to the container at path
  cat <path>       write the container's logical contents to stdout
  inspect <path>   print extent map and length summary

flags:
`)
	flag.PrintDefaults()
}

func openTransformer() (transform.Transformer, error) {
	if *codecFlag == "" {
		return transform.Identity{}, nil
	}
	name, config := splitCodec(*codecFlag)
	factory, ok := transform.Lookup(name)
	if !ok {
		return nil, berrors.E(berrors.UnsupportedOperation, fmt.Sprintf("blockstream: unknown transformer %q", name))
	}
	return factory(config)
}

func splitCodec(s string) (name, config string) {
	for i, r := range s {
		if r == ' ' {
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}

func runCreate(args []string) error {
	if len(args) != 1 {
		return berrors.E(berrors.ArgumentOutOfRange, "blockstream: create requires a path")
	}
	t, err := openTransformer()
	if err != nil {
		return err
	}
	f, err := os.Create(args[0])
	if err != nil {
		return berrors.E(berrors.SubstrateIO, err)
	}
	s, err := blockstream.NewRandomAccess(f, blockstream.Options{
		Transformer: t,
		BlockSize:   *blockSizeFlag,
	})
	if err != nil {
		return err
	}
	return s.Close()
}

func runAppend(args []string) error {
	if len(args) != 1 {
		return berrors.E(berrors.ArgumentOutOfRange, "blockstream: append requires a path")
	}
	t, err := openTransformer()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(args[0], os.O_RDWR, 0644)
	if err != nil {
		return berrors.E(berrors.SubstrateIO, err)
	}
	s, err := blockstream.NewRandomAccess(f, blockstream.Options{
		Transformer: t,
		BlockSize:   *blockSizeFlag,
	})
	if err != nil {
		return err
	}
	if _, err := s.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	if _, err := io.Copy(s, os.Stdin); err != nil {
		return err
	}
	return s.Close()
}

func runCat(args []string) error {
	if len(args) != 1 {
		return berrors.E(berrors.ArgumentOutOfRange, "blockstream: cat requires a path")
	}
	t, err := openTransformer()
	if err != nil {
		return err
	}
	f, err := os.Open(args[0])
	if err != nil {
		return berrors.E(berrors.SubstrateIO, err)
	}
	r, err := blockstream.NewReadOnly(f, blockstream.Options{
		Transformer: t,
		BlockSize:   *blockSizeFlag,
	})
	if err != nil {
		return err
	}
	cur := r.NewCursor()
	if _, err := io.Copy(os.Stdout, cur); err != nil {
		return err
	}
	return r.Close()
}

func runInspect(args []string) error {
	if len(args) != 1 {
		return berrors.E(berrors.ArgumentOutOfRange, "blockstream: inspect requires a path")
	}
	t, err := openTransformer()
	if err != nil {
		return err
	}
	f, err := os.Open(args[0])
	if err != nil {
		return berrors.E(berrors.SubstrateIO, err)
	}
	r, err := blockstream.NewReadOnly(f, blockstream.Options{
		Transformer: t,
		BlockSize:   *blockSizeFlag,
	})
	if err != nil {
		return err
	}
	defer r.Close()
	n, extents := r.Inspect()
	fmt.Printf("L=%d blocks=%d\n", r.Len(), n)
	for i, e := range extents {
		if e.IsTombstone() {
			fmt.Printf("%d: TOMBSTONE offset=%d length=%d\n", i, e.Offset, e.Length)
			continue
		}
		fmt.Printf("%d: offset=%d length=%d\n", i, e.Offset, e.Length)
	}
	return nil
}
