// Package main is the entry point for rdmon, a Real-Debrid traffic monitor.
package main

func main() {
	Execute()
}
