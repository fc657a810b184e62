package main

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strings"

	"google.golang.org/genai"
)

// External capabilities the dispatcher's handlers delegate to. Any
// component with the right call shape can be plugged in; the dispatcher
// itself never changes.

// ChatService produces conversational replies.
type ChatService interface {
	// Reply answers within the owner's conversation history.
	Reply(ctx context.Context, ownerID, prompt string) (string, error)
	// Generate answers a one-shot prompt under the given instruction.
	Generate(ctx context.Context, instruction, prompt string) (string, error)
}

// Automator performs OS-side actions on the host the server runs on.
type Automator interface {
	OpenApp(ctx context.Context, name string) error
	CloseApp(ctx context.Context, name string) error
	OpenURL(ctx context.Context, rawURL string) error
	System(ctx context.Context, task string) error
}

// Caller places a voice call through a messaging app.
type Caller interface {
	Call(ctx context.Context, contact string) error
}

// ScreenAnalyzer answers questions about the current screen content.
type ScreenAnalyzer interface {
	Analyze(ctx context.Context, question string) (string, error)
}

// handlerDeps bundles everything registerHandlers wires into the
// dispatcher. Caller and Screen may be nil when the capability is not
// configured; the verb then yields an error result instead of a crash.
type handlerDeps struct {
	chat      ChatService
	automator Automator
	caller    Caller
	screen    ScreenAnalyzer
	reminders *ReminderEngine
}

// registerHandlers binds every verb to its capability. Unknown-fallback
// segments go to chat with the raw segment so classifier drift degrades
// to conversation instead of data loss.
func registerHandlers(d *Dispatcher, deps handlerDeps) {
	chat := func(ctx context.Context, ownerID, arg string) (any, error) {
		return deps.chat.Reply(ctx, ownerID, arg)
	}
	d.Register(VerbChat, "chat", chat)
	d.Register(VerbUnknown, "chat", chat)

	d.Register(VerbRealtimeSearch, "realtime", func(ctx context.Context, ownerID, arg string) (any, error) {
		return deps.chat.Generate(ctx,
			"Trả lời ngắn gọn bằng tiếng Việt với thông tin mới nhất bạn có.", arg)
	})

	d.Register(VerbWriteContent, "content", func(ctx context.Context, ownerID, arg string) (any, error) {
		return deps.chat.Generate(ctx,
			"Viết nội dung được yêu cầu bằng tiếng Việt, đầy đủ và đúng định dạng.", arg)
	})

	d.Register(VerbOpenApp, "action", func(ctx context.Context, ownerID, arg string) (any, error) {
		if err := deps.automator.OpenApp(ctx, arg); err != nil {
			return nil, err
		}
		return fmt.Sprintf("Đang mở: %s", arg), nil
	})

	d.Register(VerbCloseApp, "action", func(ctx context.Context, ownerID, arg string) (any, error) {
		if err := deps.automator.CloseApp(ctx, arg); err != nil {
			return nil, err
		}
		return fmt.Sprintf("Đã đóng: %s", arg), nil
	})

	d.Register(VerbPlayMedia, "action", func(ctx context.Context, ownerID, arg string) (any, error) {
		u := "https://www.youtube.com/results?search_query=" + url.QueryEscape(arg)
		if err := deps.automator.OpenURL(ctx, u); err != nil {
			return nil, err
		}
		return fmt.Sprintf("Đang phát: %s", arg), nil
	})

	d.Register(VerbSearchWeb, "action", func(ctx context.Context, ownerID, arg string) (any, error) {
		u := "https://www.google.com/search?q=" + url.QueryEscape(arg)
		if err := deps.automator.OpenURL(ctx, u); err != nil {
			return nil, err
		}
		return fmt.Sprintf("Đang tìm Google: %s", arg), nil
	})

	d.Register(VerbSearchVideo, "action", func(ctx context.Context, ownerID, arg string) (any, error) {
		u := "https://www.youtube.com/results?search_query=" + url.QueryEscape(arg)
		if err := deps.automator.OpenURL(ctx, u); err != nil {
			return nil, err
		}
		return fmt.Sprintf("Đang tìm YouTube: %s", arg), nil
	})

	d.Register(VerbSystemCommand, "action", func(ctx context.Context, ownerID, arg string) (any, error) {
		if err := deps.automator.System(ctx, arg); err != nil {
			return nil, err
		}
		return fmt.Sprintf("Đã thực hiện: %s", arg), nil
	})

	d.Register(VerbCallContact, "call", func(ctx context.Context, ownerID, arg string) (any, error) {
		if deps.caller == nil {
			return nil, fmt.Errorf("gọi điện chưa được cấu hình trên máy chủ này")
		}
		if err := deps.caller.Call(ctx, arg); err != nil {
			return nil, err
		}
		return fmt.Sprintf("Đang gọi Zalo: %s", arg), nil
	})

	d.Register(VerbAnalyzeScreen, "screen", func(ctx context.Context, ownerID, arg string) (any, error) {
		if deps.screen == nil {
			return nil, fmt.Errorf("phân tích màn hình chưa được cấu hình trên máy chủ này")
		}
		return deps.screen.Analyze(ctx, arg)
	})

	d.Register(VerbSetReminder, "action", func(ctx context.Context, ownerID, arg string) (any, error) {
		_, msg, err := deps.reminders.AddFromText(ownerID, arg)
		if err != nil {
			return nil, err
		}
		return msg, nil
	})
}

// --- genai-backed ChatService ---

const chatPersona = `Bạn là Vist, một trợ lý ảo tiếng Việt thân thiện.
Trả lời ngắn gọn, tự nhiên, như đang nói chuyện.`

type genaiChat struct {
	client *genai.Client
	model  string
	log    ChatLog
}

func newGenaiChat(ctx context.Context, cfg ClassifierConfig, log ChatLog) (*genaiChat, error) {
	key := cfg.apiKey()
	if key == "" {
		return nil, fmt.Errorf("chat API key is required (set %s)", keyEnvName(cfg))
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: key})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &genaiChat{client: client, model: cfg.chatModelOrDefault(), log: log}, nil
}

func (s *genaiChat) Reply(ctx context.Context, ownerID, prompt string) (string, error) {
	var contents []*genai.Content
	if history, err := s.log.ChatHistory(ownerID, 20); err == nil {
		for _, m := range history {
			var role genai.Role = genai.RoleUser
			if m.Role == "assistant" {
				role = genai.RoleModel
			}
			contents = append(contents, genai.NewContentFromText(m.Content, role))
		}
	}
	contents = append(contents, genai.NewContentFromText(prompt, genai.RoleUser))

	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(chatPersona, genai.RoleUser),
	})
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	reply := strings.TrimSpace(resp.Text())

	if err := s.log.AppendChat(ownerID, "user", prompt); err != nil {
		logWarn("append chat log failed", "owner", ownerID, "error", err)
	}
	if err := s.log.AppendChat(ownerID, "assistant", reply); err != nil {
		logWarn("append chat log failed", "owner", ownerID, "error", err)
	}
	return reply, nil
}

func (s *genaiChat) Generate(ctx context.Context, instruction, prompt string) (string, error) {
	resp, err := s.client.Models.GenerateContent(ctx, s.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
		})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

// --- exec-backed Automator ---

// execAutomator drives the host OS: apps by binary name, URLs through
// the desktop opener, volume through amixer on Linux.
type execAutomator struct{}

func (execAutomator) OpenApp(ctx context.Context, name string) error {
	if path, err := exec.LookPath(strings.ToLower(name)); err == nil {
		cmd := exec.CommandContext(ctx, path)
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("open %s: %w", name, err)
		}
		go cmd.Wait()
		return nil
	}
	// Not an installed binary: treat it as a website.
	return execAutomator{}.OpenURL(ctx, "https://"+strings.ToLower(strings.ReplaceAll(name, " ", ""))+".com")
}

func (execAutomator) CloseApp(ctx context.Context, name string) error {
	if err := exec.CommandContext(ctx, "pkill", "-fi", name).Run(); err != nil {
		return fmt.Errorf("đóng %s: không tìm thấy ứng dụng đang chạy", name)
	}
	return nil
}

func (execAutomator) OpenURL(ctx context.Context, rawURL string) error {
	opener := "xdg-open"
	if runtime.GOOS == "darwin" {
		opener = "open"
	}
	if err := exec.CommandContext(ctx, opener, rawURL).Start(); err != nil {
		return fmt.Errorf("open url: %w", err)
	}
	return nil
}

// systemTasks maps spoken system commands to amixer arguments.
var systemTasks = map[string][]string{
	"tắt tiếng":     {"set", "Master", "mute"},
	"bật tiếng":     {"set", "Master", "unmute"},
	"tăng âm lượng": {"set", "Master", "5%+"},
	"giảm âm lượng": {"set", "Master", "5%-"},
}

func (execAutomator) System(ctx context.Context, task string) error {
	lower := strings.ToLower(strings.TrimSpace(task))
	for phrase, args := range systemTasks {
		if strings.Contains(lower, phrase) {
			if err := exec.CommandContext(ctx, "amixer", args...).Run(); err != nil {
				return fmt.Errorf("hệ thống %q: %w", task, err)
			}
			return nil
		}
	}
	return fmt.Errorf("không hỗ trợ lệnh hệ thống %q", task)
}
