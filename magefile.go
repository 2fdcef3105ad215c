//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binaryName = "bn2en"
	mainPkg    = "./cmd/bn2en"
)

// Default target to run when none is specified
var Default = Build

// Build builds the binary
func Build() error {
	fmt.Println("Building", binaryName)
	return sh.RunV("go", "build", "-o", binaryName, mainPkg)
}

// Test runs all tests
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Integration runs the tests that download the real model bundle
func Integration() error {
	env := map[string]string{"BN2EN_INTEGRATION": "1"}
	return sh.RunWithV(env, "go", "test", "-count=1", "./internal/session/...", "./internal/translation/...")
}

// Vet runs go vet
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Install installs the binary into GOPATH/bin
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output("go", "env", "GOPATH")
	if err != nil {
		return err
	}
	dest := filepath.Join(gopath, "bin", binaryName)
	fmt.Println("Installing to", dest)
	return sh.Copy(dest, binaryName)
}

// Clean removes build artifacts
func Clean() error {
	return os.RemoveAll(binaryName)
}
