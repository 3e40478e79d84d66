// Command adeoc compiles a single .adeo source file to a sibling
// .adeoobj object file.
package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"adeo/internal/compiler"
	"adeo/internal/objectfile"
)

func main() {
	flag.Usage = func() {
		log.Printf("usage: adeoc <file.adeo>")
	}
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("ERROR: Filename not added correctly.")
	}

	fileName := flag.Arg(0)
	if !strings.HasSuffix(fileName, ".adeo") {
		log.Fatalf("ERROR: Please provide a .adeo file as input.")
	}

	source, err := os.ReadFile(fileName)
	if err != nil {
		log.Fatalf("%s", err)
	}

	out, cerr := compiler.Compile(string(source))

	var content string
	if cerr != nil {
		content = objectfile.SerializeError(cerr)
	} else {
		content = objectfile.Serialize(out)
	}

	objFileName := strings.TrimSuffix(fileName, ".adeo") + ".adeoobj"
	if err := os.WriteFile(objFileName, []byte(content), 0644); err != nil {
		log.Fatalf("%s", err)
	}
}
