package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"chatshell/internal/chat"
	"chatshell/internal/session"
)

// shell is the interactive surface over the conversation machine. It is a
// thin consumer: all conversation rules live in internal/chat.
type shell struct {
	env *runtimeEnv
	out *bufio.Writer

	mu     sync.Mutex
	recent []session.RecentEntry
}

func newShell(env *runtimeEnv) *shell {
	return &shell{env: env, out: bufio.NewWriter(os.Stdout)}
}

func (s *shell) loop(resumeID string) error {
	m := s.env.machine

	// The shell is the one listing surface: keep its recent-conversations
	// view current whenever the engine (or the store watcher) signals.
	s.env.notifier.Register(s.refreshRecent)
	defer s.env.notifier.Unregister()
	s.refreshRecent()

	// Re-render when a reply lands (or generation fails) asynchronously.
	m.OnChange(func() {
		if err := m.LastError(); err != nil {
			s.printf("\n(generation failed: %v, your message is kept, try again)\n", err)
		} else {
			msgs := m.Snapshot()
			if len(msgs) > 0 && msgs[len(msgs)-1].Role == session.RoleAssistant {
				s.printf("\nassistant> %s\n", msgs[len(msgs)-1].Content)
			}
		}
		s.printf("you> ")
	})

	if resumeID != "" {
		if err := m.Open(resumeID, ""); err != nil {
			return err
		}
		s.printTranscript(m.Snapshot())
	} else {
		s.printf("chatshell, type a message, /help for commands\n")
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		s.printf("you> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := s.command(line); quit {
				break
			}
			continue
		}

		switch err := m.SendUserMessage(line); err {
		case nil:
			if _, buf := m.PendingEdit(); buf == "" && m.Phase() == chat.PhaseAwaitingReply {
				s.printf("...\n")
			}
		case chat.ErrBusy:
			s.printf("still generating, /stop to cancel first\n")
		case chat.ErrEmptyMessage:
			// Blank lines are skipped above; an all-whitespace line ends here.
		default:
			s.printf("error: %v\n", err)
		}
	}
	return scanner.Err()
}

// command handles a /-prefixed line and reports whether the shell should quit.
func (s *shell) command(line string) bool {
	m := s.env.machine
	parts := strings.SplitN(line, " ", 2)
	arg := ""
	if len(parts) == 2 {
		arg = strings.TrimSpace(parts[1])
	}

	switch parts[0] {
	case "/quit", "/exit":
		return true

	case "/help":
		s.printf(`commands:
  /list            show recent conversations
  /open <id>       resume a conversation
  /new             start a fresh conversation
  /edit <n>        edit your n-th message (1-based)
  /cancel          abandon the pending edit
  /stop            stop the in-flight reply
  /delete <id>     delete a conversation
  /search <query>  search transcripts
  /quit            exit
`)

	case "/list":
		s.mu.Lock()
		entries := append([]session.RecentEntry(nil), s.recent...)
		s.mu.Unlock()
		if len(entries) == 0 {
			s.printf("no recent conversations\n")
			break
		}
		for _, e := range entries {
			last := e.LastMessage
			if len(last) > 60 {
				last = last[:60] + "..."
			}
			s.printf("%s  %s\n", e.ID, last)
		}

	case "/open":
		if arg == "" {
			s.printf("usage: /open <session-id>\n")
			break
		}
		if err := m.Open(arg, ""); err != nil {
			s.printf("error: %v\n", err)
			break
		}
		if m.SessionID() == "" {
			s.printf("no such conversation; starting fresh\n")
		} else {
			s.printTranscript(m.Snapshot())
		}

	case "/new":
		if err := m.Open("", ""); err != nil {
			s.printf("error: %v\n", err)
		} else {
			s.printf("started a new conversation\n")
		}

	case "/edit":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			s.printf("usage: /edit <n> (your n-th message)\n")
			break
		}
		id, ok := nthUserMessageID(m.Snapshot(), n)
		if !ok {
			s.printf("no such message\n")
			break
		}
		buffer, err := m.BeginEdit(id)
		if err != nil {
			s.printf("error: %v\n", err)
			break
		}
		s.printf("editing (was: %q), type the replacement, or /cancel\n", buffer)

	case "/cancel":
		m.CancelEdit()
		s.printf("edit abandoned\n")

	case "/stop":
		if err := m.StopGeneration(); err != nil {
			s.printf("%v\n", err)
		} else {
			s.printf("stopped\n")
		}

	case "/delete":
		if arg == "" {
			s.printf("usage: /delete <session-id>\n")
			break
		}
		if err := s.env.store.Delete(arg); err != nil {
			s.printf("error: %v\n", err)
			break
		}
		s.env.notifier.Notify()
		s.printf("deleted %s\n", arg)

	case "/search":
		if arg == "" {
			s.printf("usage: /search <query>\n")
			break
		}
		hits, err := s.env.store.Search(arg, 10)
		if err != nil {
			s.printf("error: %v\n", err)
			break
		}
		if len(hits) == 0 {
			s.printf("no matches\n")
			break
		}
		for _, hit := range hits {
			s.printf("%s  %s\n", hit.SessionID, hit.Snippet)
		}

	default:
		s.printf("unknown command %s, /help\n", parts[0])
	}
	return false
}

func (s *shell) refreshRecent() {
	entries := s.env.store.ListRecent()
	s.mu.Lock()
	s.recent = entries
	s.mu.Unlock()
}

// nthUserMessageID returns the id of the user's n-th message (1-based).
func nthUserMessageID(msgs []session.Message, n int) (string, bool) {
	count := 0
	for _, msg := range msgs {
		if msg.Role == session.RoleUser {
			count++
			if count == n {
				return msg.ID, true
			}
		}
	}
	return "", false
}

func (s *shell) printTranscript(msgs []session.Message) {
	for _, msg := range msgs {
		s.printf("%s> %s\n", msg.Role, msg.Content)
	}
}

func (s *shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
	s.out.Flush()
}
