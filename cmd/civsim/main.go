// Package main is the entry point for the civilization strategy simulator.
// It only handles flag parsing and dependency injection. NO simulation logic
// belongs here.
package main

func main() {
	Execute()
}
