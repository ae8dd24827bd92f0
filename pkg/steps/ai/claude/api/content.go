package api

import (
	"encoding/json"

	"github.com/pkg/errors"
)

type ContentType string

const (
	ContentTypeText       ContentType = "text"
	ContentTypeToolUse    ContentType = "tool_use"
	ContentTypeToolResult ContentType = "tool_result"
)

type Content interface {
	Type() ContentType
}

type BaseContent struct {
	Type_ ContentType `json:"type"`
}

type TextContent struct {
	BaseContent
	Text string `json:"text"`
}

func (t TextContent) Type() ContentType {
	return ContentTypeText
}

type ToolUseContent struct {
	BaseContent
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

func (t ToolUseContent) Type() ContentType {
	return ContentTypeToolUse
}

type ToolResultContent struct {
	BaseContent
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

func (t ToolResultContent) Type() ContentType {
	return ContentTypeToolResult
}

func NewTextContent(text string) Content {
	return TextContent{BaseContent: BaseContent{Type_: ContentTypeText}, Text: text}
}

func NewToolUseContent(toolID, toolName string, toolInput json.RawMessage) Content {
	return ToolUseContent{
		BaseContent: BaseContent{Type_: ContentTypeToolUse},
		ID:          toolID,
		Name:        toolName,
		Input:       toolInput,
	}
}

func NewToolResultContent(toolUseID, content string, isError bool) Content {
	return ToolResultContent{
		BaseContent: BaseContent{Type_: ContentTypeToolResult},
		ToolUseID:   toolUseID,
		Content:     content,
		IsError:     isError,
	}
}

// decodeContents decodes a content array by dispatching on each block's type.
func decodeContents(raw []json.RawMessage) ([]Content, error) {
	ret := make([]Content, 0, len(raw))
	for i, r := range raw {
		var base BaseContent
		if err := json.Unmarshal(r, &base); err != nil {
			return nil, errors.Wrapf(err, "content block %d", i)
		}
		switch base.Type_ {
		case ContentTypeText:
			var c TextContent
			if err := json.Unmarshal(r, &c); err != nil {
				return nil, errors.Wrapf(err, "text block %d", i)
			}
			ret = append(ret, c)
		case ContentTypeToolUse:
			var c ToolUseContent
			if err := json.Unmarshal(r, &c); err != nil {
				return nil, errors.Wrapf(err, "tool_use block %d", i)
			}
			ret = append(ret, c)
		case ContentTypeToolResult:
			var c ToolResultContent
			if err := json.Unmarshal(r, &c); err != nil {
				return nil, errors.Wrapf(err, "tool_result block %d", i)
			}
			ret = append(ret, c)
		default:
			return nil, errors.Errorf("unknown content type %q in block %d", base.Type_, i)
		}
	}
	return ret, nil
}
