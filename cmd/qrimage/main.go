package main

import "github.com/MeKo-Tech/qrimage/cmd/qrimage/cmd"

func main() {
	cmd.Execute()
}
