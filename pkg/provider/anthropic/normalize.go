package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/doclift/doclift/pkg/batch"
)

// Result payload shapes observed from the batch endpoint vary by API
// revision and result type. Rather than optional-chaining through every
// possibility, each line is classified into one known shape with one
// normalization function per shape:
//
//	shapeMessage  - result.message.content is an array of content blocks
//	shapeString   - content is a plain JSON string
//	shapeEncoded  - content is a string holding JSON-encoded message
//	shapeObject   - content is an already-parsed message object
//
// Anything else is an error; the caller skips the line with a diagnostic.

type resultLine struct {
	CustomID string          `json:"custom_id"`
	Result   *resultPayload  `json:"result,omitempty"`
	Content  json.RawMessage `json:"content,omitempty"`
}

type resultPayload struct {
	Type    string          `json:"type,omitempty"`
	Message json.RawMessage `json:"message,omitempty"`
	Error   *resultError    `json:"error,omitempty"`
}

type resultError struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
}

type messageBody struct {
	Content json.RawMessage `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NormalizeLine converts one raw JSONL result line into a ResultRecord.
//
// It fails (and the line is skipped upstream) when the custom_id is
// missing, the result reports a non-success type, or no known shape
// yields text content.
func NormalizeLine(line []byte) (batch.ResultRecord, error) {
	var rl resultLine
	if err := json.Unmarshal(line, &rl); err != nil {
		return batch.ResultRecord{}, fmt.Errorf("parse result line: %w", err)
	}
	if strings.TrimSpace(rl.CustomID) == "" {
		return batch.ResultRecord{}, fmt.Errorf("result line has no custom_id")
	}

	var content string
	var err error
	switch {
	case rl.Result != nil:
		content, err = fromResult(rl.Result)
	case len(rl.Content) > 0:
		content, err = fromContentField(rl.Content)
	default:
		err = fmt.Errorf("result line has neither result nor content field")
	}
	if err != nil {
		return batch.ResultRecord{}, fmt.Errorf("custom_id %s: %w", rl.CustomID, err)
	}
	if content == "" {
		return batch.ResultRecord{}, fmt.Errorf("custom_id %s: empty content", rl.CustomID)
	}

	return batch.ResultRecord{CorrelationToken: rl.CustomID, Content: content}, nil
}

// fromResult normalizes the envelope shape {result:{type, message}}.
func fromResult(r *resultPayload) (string, error) {
	if r.Type != "" && r.Type != "succeeded" {
		if r.Error != nil {
			return "", fmt.Errorf("result type %s: %s: %s", r.Type, r.Error.Type, r.Error.Message)
		}
		return "", fmt.Errorf("result type %s", r.Type)
	}
	if len(r.Message) == 0 {
		return "", fmt.Errorf("succeeded result has no message")
	}
	return fromMessage(r.Message)
}

// fromMessage normalizes a message object whose content is either an array
// of content blocks or a single block object.
func fromMessage(raw json.RawMessage) (string, error) {
	var msg messageBody
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", fmt.Errorf("parse message: %w", err)
	}
	if len(msg.Content) == 0 {
		return "", fmt.Errorf("message has no content")
	}
	return fromBlocks(msg.Content)
}

// fromBlocks joins the text of an array of content blocks, or of a single
// block object.
func fromBlocks(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	switch {
	case strings.HasPrefix(trimmed, "["):
		var blocks []contentBlock
		if err := json.Unmarshal(raw, &blocks); err != nil {
			return "", fmt.Errorf("parse content blocks: %w", err)
		}
		var b strings.Builder
		for _, blk := range blocks {
			if blk.Type == "" || blk.Type == "text" {
				b.WriteString(blk.Text)
			}
		}
		return b.String(), nil
	case strings.HasPrefix(trimmed, "{"):
		var blk contentBlock
		if err := json.Unmarshal(raw, &blk); err != nil {
			return "", fmt.Errorf("parse content block: %w", err)
		}
		return blk.Text, nil
	default:
		return "", fmt.Errorf("unrecognized content shape")
	}
}

// fromContentField normalizes the legacy top-level content field: a plain
// string, a string-encoded message, or an already-parsed message object.
func fromContentField(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "\"") {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("parse content string: %w", err)
		}
		// A string that itself holds an encoded message object is
		// unwrapped once; anything else is taken verbatim.
		inner := strings.TrimSpace(s)
		if strings.HasPrefix(inner, "{") {
			if text, err := fromMessage(json.RawMessage(inner)); err == nil && text != "" {
				return text, nil
			}
		}
		return s, nil
	}
	if strings.HasPrefix(trimmed, "{") {
		return fromMessage(raw)
	}
	return "", fmt.Errorf("unrecognized content field shape")
}
