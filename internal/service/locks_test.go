package service

import (
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreditLocks_SerializesPerCredit(t *testing.T) {
	l := NewCreditLocks()

	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("credito-1")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestCreditLocks_DropsIdleEntries(t *testing.T) {
	l := NewCreditLocks()

	unlockA := l.Lock("a")
	unlockB := l.Lock("b")
	l.mu.Lock()
	assert.Len(t, l.locks, 2)
	l.mu.Unlock()

	unlockA()
	unlockB()

	l.mu.Lock()
	assert.Empty(t, l.locks)
	l.mu.Unlock()
}

func TestCreditLocks_ContendedEntrySurvivesUntilLastRelease(t *testing.T) {
	l := NewCreditLocks()
	first := l.Lock("a")

	acquired := make(chan func())
	go func() { acquired <- l.Lock("a") }()

	// Wait for the second holder to register on the entry.
	for {
		l.mu.Lock()
		refs := 0
		if e, ok := l.locks["a"]; ok {
			refs = e.refs
		}
		l.mu.Unlock()
		if refs == 2 {
			break
		}
		runtime.Gosched()
	}

	first()
	l.mu.Lock()
	assert.Len(t, l.locks, 1, "entry stays while a waiter holds it")
	l.mu.Unlock()

	second := <-acquired
	second()

	l.mu.Lock()
	assert.Empty(t, l.locks)
	l.mu.Unlock()
}
