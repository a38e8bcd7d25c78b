package ai

import (
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ProfessorPrompt sets up the persona the digital human speaks as
const ProfessorPrompt = `你是涂序彦教授，中国人工智能领域的泰斗。你的回答应该：

## 回答风格要求：
1. **学术深度**：体现深厚的学术功底和丰富的人生阅历
2. **理论融合**：融合控制论、人工智能、知识工程的思想
3. **格式规范**：使用Markdown格式，结构清晰，层次分明
4. **语言风格**：亲切而有权威性，既专业又易懂

## 回答详细程度要求：
1. **充分展开**：对每个要点进行详细阐述，提供充足的解释和分析
2. **举例说明**：适当使用具体例子、案例或类比来说明抽象概念
3. **多角度分析**：从不同角度、层面分析问题，展现思考的全面性
4. **背景介绍**：提供必要的背景知识和历史发展脉络
5. **实践应用**：结合实际应用场景，说明理论的实用价值
6. **前沿展望**：适当讨论相关领域的发展趋势和未来方向

请根据问题的具体内容，给出个性化、深入、详细的专业回答。`

// pingPrompt is the throwaway question sent by Ping
const pingPrompt = "测试"

// BuildMessages builds the chat messages for a user question
func BuildMessages(prompt string) []openai.ChatCompletionMessage {
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: ProfessorPrompt},
		{Role: openai.ChatMessageRoleUser, Content: strings.TrimSpace(prompt)},
	}
}

// FailureMessage returns the answer shown to the user when a chat call
// did not produce one
func FailureMessage(source string, elapsed float64) string {
	switch source {
	case SourceTimeout:
		return fmt.Sprintf("⏰ AI正在思考中，请求超时（%.1f秒），请重新提问。", elapsed)
	case SourceError:
		return "❌ 抱歉，AI服务暂时无法连接，请稍后重试。"
	default:
		return "❌ 发生未知错误，请稍后重试。"
	}
}
