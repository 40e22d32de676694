// Command swiftmptpctl is the CLI client for swiftmptpd.
package main

import "github.com/mptpnet/swiftmptp/cmd/swiftmptpctl/commands"

func main() {
	commands.Execute()
}
