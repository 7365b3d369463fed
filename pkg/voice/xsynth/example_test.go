package xsynth_test

import (
	"context"
	"fmt"
	"time"

	"github.com/omeyang/xvoice/pkg/voice/xgate"
	"github.com/omeyang/xvoice/pkg/voice/xsynth"
)

func ExampleChunkText() {
	for _, c := range xsynth.ChunkText("Hello there. General Kenobi! You are a bold one.", 30) {
		fmt.Println(c)
	}
	// Output:
	// Hello there. General Kenobi!
	// You are a bold one.
}

func ExampleService_Synthesize() {
	gate, err := xgate.New()
	if err != nil {
		panic(err)
	}
	defer gate.Close()

	svc, err := xsynth.NewService(gate, xsynth.NewSimEngine(xsynth.WithDelay(10*time.Millisecond)))
	if err != nil {
		panic(err)
	}

	res, err := svc.Synthesize(context.Background(), xsynth.Request{
		VoiceID:   "narrator",
		SessionID: "s1",
		Text:      "One sentence. Another sentence.",
		Params:    xsynth.VoiceParams{Seed: 7},
	})
	if err != nil {
		panic(err)
	}
	fmt.Println("chunks:", res.Chunks, "cached:", res.Cached)

	res, err = svc.Synthesize(context.Background(), xsynth.Request{
		VoiceID:   "narrator",
		SessionID: "s1",
		Text:      "One sentence. Another sentence.",
		Params:    xsynth.VoiceParams{Seed: 7},
	})
	if err != nil {
		panic(err)
	}
	fmt.Println("chunks:", res.Chunks, "cached:", res.Cached)
	// Output:
	// chunks: 1 cached: false
	// chunks: 1 cached: true
}
