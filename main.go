// Command keysound plays a sound for every key press.
package main

import "github.com/zjrosen/keysound/cmd"

func main() {
	cmd.Execute()
}
