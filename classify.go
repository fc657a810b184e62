package main

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Classifier turns a raw utterance into the comma-separated command
// string the Task Parser decodes. The contract with the provider
// (prompting, few-shot examples) is opaque to the rest of the system.
type Classifier interface {
	Classify(ctx context.Context, utterance string) (string, error)
}

// classifierPreamble prompts the decision model. It must only label the
// query, never answer it; the output keywords are exactly the ones
// verbKeywords decodes.
const classifierPreamble = `Bạn là một Mô hình Ra Quyết Định cực kỳ chính xác, chuyên phân loại loại truy vấn được đưa ra.
*** Tuyệt đối không trả lời truy vấn, chỉ phân loại nó. ***

-> Phản hồi 'chung ( truy vấn )' nếu truy vấn có thể được trả lời bởi một chatbot hội thoại và không cần thông tin cập nhật.
-> Phản hồi 'thời gian thực ( truy vấn )' nếu truy vấn cần thông tin thời gian thực (tin tức, người nổi tiếng, sự kiện).
-> Phản hồi 'mở ( tên ứng dụng hoặc website )' nếu truy vấn yêu cầu mở ứng dụng.
-> Phản hồi 'đóng ( tên ứng dụng )' nếu truy vấn yêu cầu đóng ứng dụng.
-> Phản hồi 'phát ( tên bài hát )' nếu truy vấn yêu cầu phát bài hát.
-> Phản hồi 'nhắc nhở ( thời gian nội dung )' nếu truy vấn yêu cầu đặt lời nhắc. Ví dụ: 'nhắc tôi 9h tối mai họp' => 'nhắc nhở 9:00pm ngày mai họp'.
-> Phản hồi 'hệ thống ( tên tác vụ )' cho tắt tiếng, bật tiếng, tăng/giảm âm lượng.
-> Phản hồi 'nội dung ( chủ đề )' nếu truy vấn yêu cầu viết nội dung (đơn, code, email...).
-> Phản hồi 'tìm google ( chủ đề )' cho tìm kiếm Google, 'tìm youtube ( chủ đề )' cho YouTube.
-> Phản hồi 'gọi zalo ( tên người liên hệ )' nếu truy vấn yêu cầu gọi Zalo.
-> Phản hồi 'phân tích màn hình ( câu hỏi )' nếu truy vấn hỏi về nội dung trên màn hình.
-> Nếu truy vấn yêu cầu nhiều tác vụ như 'mở facebook và gọi zalo cho mẹ' => phản hồi 'mở facebook, gọi zalo mẹ'.
-> Nếu người dùng nói lời tạm biệt hoặc muốn kết thúc => phản hồi 'thoát'.
-> Phản hồi 'chung ( truy vấn )' nếu bạn không thể phân loại.`

// Few-shot turns teaching the output format, including multi-task splits.
var classifierExamples = []struct{ user, model string }{
	{"bạn khoẻ không?", "chung bạn khoẻ không?"},
	{"mở chrome và kể tôi nghe về Hồ Chí Minh.", "mở chrome, chung kể tôi nghe về Hồ Chí Minh."},
	{"hôm nay ngày mấy và tiện thể nhắc tôi có buổi biểu diễn nhảy vào 11h tối ngày 5 tháng 8",
		"chung hôm nay ngày mấy, nhắc nhở 11:00pm 5 tháng 8 buổi biểu diễn nhảy"},
	{"Bạn thấy gì trên màn hình và gọi zalo cho Ba nhé.",
		"phân tích màn hình bạn thấy gì trên màn hình, gọi zalo Ba"},
}

// genaiClassifier classifies through the Gemini API.
type genaiClassifier struct {
	client *genai.Client
	model  string
}

func newGenaiClassifier(ctx context.Context, cfg ClassifierConfig) (*genaiClassifier, error) {
	key := cfg.apiKey()
	if key == "" {
		return nil, fmt.Errorf("classifier API key is required (set %s)", keyEnvName(cfg))
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: key})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &genaiClassifier{client: client, model: cfg.modelOrDefault()}, nil
}

func keyEnvName(cfg ClassifierConfig) string {
	if cfg.APIKeyEnv != "" {
		return cfg.APIKeyEnv
	}
	return "GEMINI_API_KEY"
}

func (c *genaiClassifier) Classify(ctx context.Context, utterance string) (string, error) {
	contents := make([]*genai.Content, 0, len(classifierExamples)*2+1)
	for _, ex := range classifierExamples {
		contents = append(contents,
			genai.NewContentFromText(ex.user, genai.RoleUser),
			genai.NewContentFromText(ex.model, genai.RoleModel))
	}
	contents = append(contents, genai.NewContentFromText(utterance, genai.RoleUser))

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(classifierPreamble, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.7),
	})
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}

	out := strings.TrimSpace(strings.ReplaceAll(resp.Text(), "\n", ""))
	logDebug("classified", "utterance", utterance, "output", out)
	return out, nil
}
