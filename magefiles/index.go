// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Index groups the secondary index targets.
type Index mg.Namespace

// Load indexes every YAML file under data/documents.
func (Index) Load() error {
	mg.Deps(Build)
	files, err := filepath.Glob(filepath.Join("data", "documents", "*.yaml"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("No documents in data/documents.")
		return nil
	}
	args := append([]string{"index", "load"}, files...)
	return sh.RunV(filepath.Join(binDir, binName), args...)
}

// Stats prints per-collection counts.
func (Index) Stats() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "index", "stats")
}
