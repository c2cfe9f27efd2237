package main

import "github.com/jvanloon/google-actions-proxy/cmd"

func main() {
	cmd.Execute()
}
