//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Builds the dacgen tool into bin/.
func (Build) Dacgen() error {
	if _, err := executeCmd("go", withArgs("build", "-trimpath", "-o", "bin/dacgen", "./cmd/dacgen"), withEnv("CGO_ENABLED=0"), withStream()); err != nil {
		return err
	}
	return nil
}

// Packs assets/ into assets/game.dac using assets/dacgen.yaml.
func (Build) Assets() error {
	mg.Deps(Build.Dacgen)
	if _, err := executeCmd("bin/dacgen", withArgs("build", "--config", "assets/dacgen.yaml"), withStream()); err != nil {
		return err
	}
	if _, err := executeCmd("bin/dacgen", withArgs("verify", "assets/game.dac"), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the unit tests with the race detector.
func (Build) Test() error {
	if _, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream()); err != nil {
		return err
	}
	return nil
}

// Removes the build tool, the packed container and the build cache.
func (Build) Clean() error {
	if _, err := executeCmd("rm", withArgs("-rf", "bin"), withStream()); err != nil {
		return err
	}
	_, err := executeCmd("rm", withArgs("-rf", ".cache", "game.dac"), withDir("assets"), withStream())
	return err
}
