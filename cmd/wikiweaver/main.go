// Package main provides the wikiweaver command line.
package main

func main() {
	Execute()
}
