// h5gen writes the sample HDF5 container used in docs and manual testing.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"

	"github.com/robert-malhotra/h5cat/internal/sample"
)

func main() {
	out := flag.String("o", "sample.h5", "Output file")
	flag.Parse()

	logger := hclog.New(&hclog.LoggerOptions{Name: "h5gen", Level: hclog.Info, Output: os.Stderr})

	if err := sample.Write(*out); err != nil {
		logger.Error("writing sample", "path", *out, "error", err)
		os.Exit(1)
	}
	fmt.Println(*out)
}
