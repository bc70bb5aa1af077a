package windowing_test

import (
	"github.com/anthropics/anthropic-sdk-go"

	"github.com/petasbytes/bb-agent/internal/windowing"
)

// Text block constructor
func T(text string) anthropic.ContentBlockParamUnion {
	return anthropic.NewTextBlock(text)
}

// Tool-use block constructor
func TU(id string) anthropic.ContentBlockParamUnion {
	return anthropic.ContentBlockParamUnion{OfToolUse: &anthropic.ToolUseBlockParam{ID: id, Name: "list_files"}}
}

// Tool-result constructor with a text payload
func TR(id, s string) anthropic.ContentBlockParamUnion {
	return anthropic.NewToolResultBlock(id, s, false)
}

func Asst(blocks ...anthropic.ContentBlockParamUnion) anthropic.MessageParam {
	return anthropic.NewAssistantMessage(blocks...)
}

func User(blocks ...anthropic.ContentBlockParamUnion) anthropic.MessageParam {
	return anthropic.NewUserMessage(blocks...)
}

func groupsEqual(got, want []windowing.Group) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
