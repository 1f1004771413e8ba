package responder

import (
	"fitpulse.app/coach/internal/llm"
	"fitpulse.app/coach/internal/model"
)

// SystemInstruction anchors every prompt. The coach persona is fixed; prompt
// engineering beyond this single instruction is out of scope.
const SystemInstruction = "Ты — персональный фитнес-тренер приложения FitPulse. " +
	"Отвечай кратко и по делу: тренировки, питание, восстановление. " +
	"Не ставь медицинских диагнозов и при жалобах на здоровье рекомендуй обратиться к врачу."

// BuildPrompt assembles the ordered turn list for the model: the system
// instruction, one user/assistant pair per history entry, then the current
// prompt as the final user turn.
//
// If the current prompt textually equals the last history entry's message it
// is not appended again. The comparison is raw text equality, so a user who
// legitimately repeats a message gets it suppressed; known behavior, kept.
func BuildPrompt(history []model.ChatMessage, current string) []llm.Turn {
	turns := make([]llm.Turn, 0, 2*len(history)+2)
	turns = append(turns, llm.Turn{Role: llm.RoleSystem, Content: SystemInstruction})

	for _, entry := range history {
		turns = append(turns, llm.Turn{Role: llm.RoleUser, Content: entry.Message})
		if entry.Response != nil && !entry.IsProcessing {
			turns = append(turns, llm.Turn{Role: llm.RoleAssistant, Content: *entry.Response})
		}
	}

	if n := len(history); n > 0 && history[n-1].Message == current {
		return turns
	}

	return append(turns, llm.Turn{Role: llm.RoleUser, Content: current})
}
