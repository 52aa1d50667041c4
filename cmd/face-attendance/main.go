package main

import "github.com/oshokin/face-attendance/cmd/face-attendance/cmd"

func main() {
	cmd.Execute()
}
