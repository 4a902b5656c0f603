package main

import "github.com/oshokin/autostand/cmd/autostand/cmd"

func main() {
	cmd.Execute()
}
