package main

import (
	"bufio"
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/csvview/csvview/internal/index"
	"github.com/csvview/csvview/internal/source"
)

func main() {
	sizeMB := 200
	if len(os.Args) >= 2 {
		n, err := strconv.Atoi(os.Args[1])
		if err != nil || n <= 0 {
			fmt.Println("Usage: benchmark [size_mb]")
			os.Exit(1)
		}
		sizeMB = n
	}

	// Generate File
	fmt.Printf("Generating %d MB CSV...\n", sizeMB)
	tmpDir, err := os.MkdirTemp("", "csvview_bench")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(tmpDir)

	csvPath := filepath.Join(tmpDir, "bench.csv")
	f, err := os.Create(csvPath)
	if err != nil {
		panic(err)
	}

	w := bufio.NewWriterSize(f, 64*1024)
	w.WriteString("id,code,value,description\n")

	// Write until size reached
	bytesWritten := int64(0)
	limit := int64(sizeMB) * 1024 * 1024

	rows := 0
	buf := make([]byte, 0, 1024)

	rng := rand.New(rand.NewSource(123))

	for bytesWritten < limit {
		rows++
		// id,code,value,description
		buf = buf[:0]
		buf = fmt.Appendf(buf, "%d,US-%d,%d,\"Description for item %d, with some padding to make it longer\"\n", rows, rng.Intn(1000), rng.Intn(10000), rows)

		n, _ := w.Write(buf)
		bytesWritten += int64(n)
	}
	w.Flush()
	f.Close()

	fmt.Printf("Generated %d rows (%.2f MB)\n", rows, float64(bytesWritten)/1024/1024)

	// Benchmark
	fmt.Println("Starting index scan...")

	src, err := source.Open(csvPath)
	if err != nil {
		panic(err)
	}
	defer src.Close()

	start := time.Now()
	ix, err := index.Build(context.Background(), src.Bytes(), ',', nil)
	if err != nil {
		panic(err)
	}
	elapsed := time.Since(start)

	if ix.Len() != rows+1 {
		fmt.Printf("WARNING: indexed %d records, expected %d\n", ix.Len(), rows+1)
	}

	mbPerSec := float64(bytesWritten) / 1024 / 1024 / elapsed.Seconds()
	fmt.Printf("\n--------------------------------------------------\n")
	fmt.Printf("Records:    %d\n", ix.Len())
	fmt.Printf("Throughput: %.2f MB/s\n", mbPerSec)
	fmt.Printf("Time:       %v\n", elapsed)
	fmt.Printf("--------------------------------------------------\n")
}
