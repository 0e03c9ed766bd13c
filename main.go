// Command retake is the VOD round search service binary.
package main

import "github.com/retakeai/retake/cmd"

func main() {
	cmd.Execute()
}
