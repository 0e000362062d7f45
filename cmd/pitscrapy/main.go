package main

import (
	"github.com/elijahthis/pitscrapy/cmd"
	"github.com/elijahthis/pitscrapy/internal/shared"
)

func main() {
	shared.InitLogger("pitscrapy")

	cmd.Execute()
}
