// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
package cmd

import (
	"fmt"
	"io"

	"github.com/ostafen/sigcrawl/internal/env"
	"github.com/spf13/cobra"
)

func Execute() error {
	return NewRootCommand().Execute()
}

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     env.AppName,
		Short:   env.AppName + " - file signature scanning and quarantine server",
		Version: env.Version,
	}

	rootCmd.AddCommand(
		DefineServeCommand(),
		DefineSendCommand(),
		DefineCheckCommand(),
		DefineMountCommand(),
		DefineInventoryCommand(),
	)
	return rootCmd
}

func PrintLogo(w io.Writer) {
	fmt.Fprintln(w, "      _                              _ ")
	fmt.Fprintln(w, "  ___(_) __ _  ___ _ __ __ ___      _| |")
	fmt.Fprintln(w, " / __| |/ _` |/ __| '__/ _` \\ \\ /\\ / / |")
	fmt.Fprintln(w, " \\__ \\ | (_| | (__| | | (_| |\\ V  V /| |")
	fmt.Fprintln(w, " |___/_|\\__, |\\___|_|  \\__,_| \\_/\\_/ |_|")
	fmt.Fprintln(w, "        |___/                          ")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "File signature scanning and quarantine server")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Version:    %s\n", env.Version)
	fmt.Fprintf(w, "Commit:     %s\n", env.CommitHash)
	fmt.Fprintf(w, "Build Time: %s\n", env.BuildTime)
	fmt.Fprintln(w)
}
