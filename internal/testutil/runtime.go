// Package testutil provides a fake agent runtime for tests.
//
// The fake runtime is the test binary itself, re-executed with an
// environment marker. Each test package that uses it declares:
//
//	func TestHelperProcess(t *testing.T) {
//	    testutil.RunHelperProcess()
//	}
//
// and spawns it with Spec or Options.
package testutil

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/wagiedev/agentbridge/internal/config"
	"github.com/wagiedev/agentbridge/internal/launcher"
	"github.com/wagiedev/agentbridge/internal/message"
)

const (
	helperEnv     = "AGENTBRIDGE_WANT_HELPER_PROCESS"
	helperModeEnv = "AGENTBRIDGE_HELPER_MODE"
	helperRun     = "-test.run=^TestHelperProcess$"
)

// Modes of the fake runtime.
const (
	// ModeEcho answers each user_message with a token echoing the message
	// and a done, answers every other request with a done, and exits on
	// end-of-input.
	ModeEcho = "echo"

	// ModeCrash writes to stderr and exits with code 3 at once.
	ModeCrash = "crash"

	// ModeStubborn reports ready and then ignores its input until killed.
	ModeStubborn = "stubborn"

	// ModeFlood behaves like ModeEcho but answers each user_message with
	// FloodTokens tokens before the done.
	ModeFlood = "flood"
)

// FloodTokens is how many tokens ModeFlood streams per user_message.
const FloodTokens = 3000

// ConversationList is the data the fake runtime returns for
// list_conversations.
const ConversationList = `[{"id":"conv-1","title":"First"},{"id":"conv-2","title":"Second"}]`

// RunHelperProcess runs the fake runtime and exits if the current process
// was started as one. Otherwise it returns immediately.
func RunHelperProcess() {
	if os.Getenv(helperEnv) != "1" {
		return
	}

	os.Exit(fakeRuntime(os.Getenv(helperModeEnv)))
}

// Spec returns a launch spec that re-executes the test binary as the fake
// runtime in the given mode.
func Spec(mode string) launcher.Spec {
	return launcher.Spec{
		Path: os.Args[0],
		Args: []string{helperRun},
		Env:  append(os.Environ(), helperEnv+"=1", helperModeEnv+"="+mode),
	}
}

// Env returns the environment that turns the test binary into the fake
// runtime in the given mode.
func Env(mode string) map[string]string {
	return map[string]string{
		helperEnv:     "1",
		helperModeEnv: mode,
	}
}

// Args returns the arguments that re-execute the test binary as the fake
// runtime.
func Args() []string {
	return []string{helperRun}
}

// Options returns bridge options that launch the fake runtime in the given
// mode through the regular discovery path.
func Options(mode string) *config.Options {
	return &config.Options{
		RuntimeCommand:   os.Args[0],
		RuntimeArgs:      Args(),
		RuntimeDir:       ".",
		SkipVersionCheck: true,
		Env:              Env(mode),
	}
}

func fakeRuntime(mode string) int {
	now := func() int64 { return time.Now().UnixMilli() }
	out := json.NewEncoder(os.Stdout)

	fmt.Fprintln(os.Stderr, "fake runtime booting")

	switch mode {
	case ModeCrash:
		fmt.Fprintln(os.Stderr, "fatal: cannot load model")

		return 3
	case ModeStubborn:
		_ = out.Encode(&message.Ready{Timestamp: now()})

		time.Sleep(time.Hour)

		return 0
	}

	fmt.Println("Loading config...")
	_ = out.Encode(&message.Ready{Timestamp: now()})

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		var req message.Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			fmt.Fprintln(os.Stderr, "bad request:", err)

			continue
		}

		switch req.Kind {
		case message.KindUserMessage:
			text := ""
			if req.Message != nil {
				text = *req.Message
			}

			if mode == ModeFlood {
				for i := range FloodTokens {
					_ = out.Encode(&message.Token{ID: req.ID, Token: fmt.Sprintf("%d ", i), Timestamp: now()})
				}

				_ = out.Encode(&message.Done{ID: req.ID, Timestamp: now()})

				continue
			}

			_ = out.Encode(&message.ToolUse{ID: req.ID, Data: json.RawMessage(`{"name":"echo"}`), Timestamp: now()})
			_ = out.Encode(&message.ToolResult{ID: req.ID, Data: json.RawMessage(`{"ok":true}`), Timestamp: now()})
			_ = out.Encode(&message.Token{ID: req.ID, Token: text, Timestamp: now()})
			_ = out.Encode(&message.Done{ID: req.ID, Timestamp: now()})
		case message.KindListConversations:
			_ = out.Encode(&message.Done{ID: req.ID, Data: json.RawMessage(ConversationList), Timestamp: now()})
		case message.KindLoadConversation, message.KindDeleteConversation:
			if req.ConversationID == nil || *req.ConversationID == "" {
				_ = out.Encode(&message.Error{ID: req.ID, Error: "conversation_id required", Timestamp: now()})

				continue
			}

			data, _ := json.Marshal(map[string]string{"conversation_id": *req.ConversationID})
			_ = out.Encode(&message.Done{ID: req.ID, Data: data, Timestamp: now()})
		default:
			_ = out.Encode(&message.Done{ID: req.ID, Timestamp: now()})
		}
	}

	return 0
}
