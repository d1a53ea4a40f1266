package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/velamed/velamed/internal/detect"
	"github.com/velamed/velamed/internal/engine"
	"github.com/velamed/velamed/internal/patterns"
)

const defaultText = "Paciente María González García, tel +52 55 1234 5678, " +
	"CURP GOGM850312MDFNRR08, expediente MRN-2024-8756, correo maria.gonzalez@example.mx, " +
	"consulta el 12 de marzo de 2024 en Av. Insurgentes Sur 1234, CDMX."

func main() {
	n := flag.Int("n", 500, "number of iterations")
	textPath := flag.String("text", "", "path to a text file to de-identify (optional)")
	flag.Parse()

	text := defaultText
	if *textPath != "" {
		data, err := os.ReadFile(*textPath)
		if err != nil {
			log.Fatalf("read text file: %v", err)
		}
		text = string(data)
	}

	eng := engine.New(engine.Config{
		Detector: detect.New(patterns.Library()),
	})

	ctx := context.Background()
	req := engine.Request{Text: text}

	// Warmup
	for i := 0; i < 5; i++ {
		if _, err := eng.Deidentify(ctx, req); err != nil {
			log.Fatalf("warmup deidentify failed: %v", err)
		}
	}

	if *n <= 0 {
		*n = 1
	}

	var detected int
	durations := make([]time.Duration, 0, *n)
	for i := 0; i < *n; i++ {
		start := time.Now()
		resp, err := eng.Deidentify(ctx, req)
		if err != nil {
			log.Fatalf("deidentify failed: %v", err)
		}
		detected = resp.Summary.TotalDetected
		durations = append(durations, time.Since(start))
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	var total time.Duration
	for _, d := range durations {
		total += d
	}

	avg := float64(total.Microseconds()) / 1000.0 / float64(len(durations))
	p50 := float64(durations[len(durations)/2].Microseconds()) / 1000.0
	p95 := float64(durations[int(float64(len(durations))*0.95)].Microseconds()) / 1000.0

	fmt.Printf("bench: n=%d avg_ms=%.2f p50_ms=%.2f p95_ms=%.2f text_bytes=%d detected=%d\n",
		len(durations),
		avg,
		p50,
		p95,
		len(text),
		detected,
	)
}
