//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Packs the assets and runs the testbed against them.
func (Run) Engine() error {
	mg.Deps(Build.Assets)
	fmt.Println("Run engine...")
	if _, err := executeCmd("go", withArgs("run", "main.go", "--assets", "assets"), withStream()); err != nil {
		return err
	}
	return nil
}

// Rebuilds assets/game.dac whenever a source changes.
func (Run) Watch() error {
	mg.Deps(Build.Dacgen)
	if _, err := executeCmd("bin/dacgen", withArgs("watch", "--config", "assets/dacgen.yaml"), withStream()); err != nil {
		return err
	}
	return nil
}
