// Command ehcisim replays USB host controller scenarios against a simulated
// EHCI schedule engine.
package main

import "github.com/ardnew/softehci/cmd/ehcisim/cmd"

func main() {
	cmd.Execute()
}
