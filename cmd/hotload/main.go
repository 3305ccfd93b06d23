package main

import "github.com/dbsmedya/hotload/cmd/hotload/cmd"

func main() {
	cmd.Execute()
}
