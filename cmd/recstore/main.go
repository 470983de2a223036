/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"github.com/ssargent/recordstore/cmd/recstore/cmd"
)

func main() {
	cmd.Execute()
}
