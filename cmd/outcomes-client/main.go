package main

import "github.com/campusbridge/lti-outcomes/internal/cli"

func main() {
	cli.Execute()
}
