// Command adeovm loads a single .adeoobj object file and executes it.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"adeo/internal/objectfile"
	"adeo/internal/vm"
)

func main() {
	flag.Usage = func() {
		log.Printf("usage: adeovm <file.adeoobj>")
	}
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("ERROR: Filename not added correctly.")
	}

	fileName := flag.Arg(0)
	if !strings.HasSuffix(fileName, ".adeoobj") {
		log.Fatalf("ERROR: Please provide an .adeoobj file as input.")
	}

	data, err := os.ReadFile(fileName)
	if err != nil {
		log.Fatalf("%s", err)
	}

	img, err := objectfile.Parse(string(data))
	if err != nil {
		log.Fatalf("%s", err)
	}
	if img.CompileFailed {
		log.Fatalf("%s: refusing to run a file that failed to compile", fileName)
	}

	machine := vm.New(img)
	if _, rerr := machine.Run(); rerr != nil {
		fmt.Fprintf(os.Stderr, "ADEO EXECUTION ERROR %s %s: %s\n", fileName, rerr.Kind, rerr.Description)
		os.Exit(1)
	}
}
