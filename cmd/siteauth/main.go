package main

import "github.com/repairloader/siteauth/cmd/siteauth/cmd"

func main() {
	cmd.Execute()
}
