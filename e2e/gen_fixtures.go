//go:build ignore

// gen_fixtures creates source images for the E2E smoke test.
// Usage: go run gen_fixtures.go <output_dir>
package main

import (
	"fmt"
	"os"

	"github.com/AnyUserName/derivimg/internal/fixture"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gen_fixtures <output_dir>")
		os.Exit(1)
	}
	dir := os.Args[1]

	// Photo (JPEG, 1280x853), the copy candidate at its native width.
	if _, err := fixture.WriteJPEG(dir, "bio.jpg", 1280, 853); err != nil {
		fail(err)
	}

	// Mascot (PNG, 815x600).
	if _, err := fixture.WritePNG(dir, "mascot.png", 815, 600); err != nil {
		fail(err)
	}

	// Cards (JPEG, 200x150 each) in a subdirectory.
	for i := 1; i <= 3; i++ {
		if _, err := fixture.WriteJPEG(dir, fmt.Sprintf("cards/card-%d.jpg", i), 200, 150); err != nil {
			fail(err)
		}
	}

	fmt.Fprintf(os.Stderr, "[gen_fixtures] created 5 fixtures in %s\n", dir)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "[gen_fixtures] %v\n", err)
	os.Exit(1)
}
