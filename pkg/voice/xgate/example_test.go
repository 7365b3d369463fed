package xgate_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/omeyang/xvoice/pkg/voice/xgate"
)

func ExampleResolveKey() {
	fmt.Println(xgate.ResolveKey("narrator", ""))
	fmt.Println(xgate.ResolveKey("narrator", "session-42"))
	// Output:
	// narrator
	// session-42:narrator
}

func ExampleGate_Do() {
	g, err := xgate.New()
	if err != nil {
		panic(err)
	}
	defer g.Close()

	req := xgate.Request{RequestID: "req-1", ResourceID: "narrator", ScopeID: "s1"}
	err = g.Do(context.Background(), req, func(ctx context.Context) error {
		holder, _ := g.ActiveHolder("narrator", "s1")
		fmt.Println("holder:", holder)
		return nil
	})
	fmt.Println("err:", err)
	fmt.Println("busy:", g.IsBusy("narrator", "s1"))
	// Output:
	// holder: req-1
	// err: <nil>
	// busy: false
}

func ExampleGate_Acquire_timeout() {
	g, err := xgate.New()
	if err != nil {
		panic(err)
	}
	defer g.Close()

	h, err := g.Acquire(context.Background(), xgate.Request{RequestID: "A", ResourceID: "v1"})
	if err != nil {
		panic(err)
	}
	defer h.Release()

	_, err = g.Acquire(context.Background(), xgate.Request{
		RequestID:  "B",
		ResourceID: "v1",
		Timeout:    20 * time.Millisecond,
	})
	fmt.Println(errors.Is(err, xgate.ErrAdmissionTimeout))
	fmt.Println(g.Stats().TimeoutRequests)
	// Output:
	// true
	// 1
}

func ExampleGate_CleanupSession() {
	g, err := xgate.New()
	if err != nil {
		panic(err)
	}
	defer g.Close()

	h, err := g.Acquire(context.Background(), xgate.Request{ResourceID: "v1", ScopeID: "s1"})
	if err != nil {
		panic(err)
	}

	res := g.CleanupSession(context.Background(), "s1")
	fmt.Printf("resources=%d forced=%d\n", res.Resources, res.Forced)
	fmt.Println(context.Cause(h.Context()))
	fmt.Println(h.Release())
	// Output:
	// resources=1 forced=1
	// xgate: session closed
	// xgate: session closed
}
