// Package main provides the entry point of the defect detection website.
//
// Usage:
//
//	defect-detector serve
//	defect-detector validate <image>...
//
// See --help for all available options.
package main

func main() {
	Execute()
}
