package main

import "github.com/andresmejia3/facecheck/cmd"

func main() {
	cmd.Execute()
}
