package service

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"aijudge-backend/models"
)

// Generation parameters. Verdicts favor consistency over creativity;
// follow-up responses run slightly warmer since they argue against a
// standing verdict.
const (
	verdictTemperature  = 0.3
	verdictMaxTokens    = 2000
	followUpTemperature = 0.4
	followUpMaxTokens   = 1500

	// Per-side cap on prompt input. A capped side is flagged Truncated on
	// its submission; truncation is never silent.
	maxSideTextChars = 12000
)

const verdictSystemInstruction = "You are an experienced AI Judge with deep knowledge of legal systems, precedents, and judicial reasoning. You provide fair, balanced, and well-reasoned verdicts."

const followUpSystemInstruction = "You are an AI Judge. You've already given a verdict. Now listen to follow-up arguments and reconsider if the new points are compelling. Be open to changing your verdict if new evidence or legal reasoning is presented."

// BuildVerdictPrompt assembles the initial verdict prompt. The template
// is a pure function of the two side texts: no case id, no timestamps,
// nothing else. The verdict cache key depends on that.
func BuildVerdictPrompt(sideAText, sideBText string) string {
	return fmt.Sprintf(`%s

You are an AI Judge trained on legal precedents and judgments. Analyze this case carefully and provide a detailed verdict.

SIDE A ARGUMENTS:
%s

SIDE B ARGUMENTS:
%s

Provide your verdict in the following format:
1. VERDICT: [In favor of Side A / Side B / Split Decision]
2. REASONING: [Detailed legal reasoning]
3. KEY POINTS: [List key legal principles applied]
4. COUNTERARGUMENTS CONSIDERED: [What arguments you weighed]

Be thorough, fair, and base your decision on legal principles and evidence presented.`,
		verdictSystemInstruction, sideAText, sideBText)
}

// BuildFollowUpPrompt assembles the follow-up prompt: full original
// material, the standing verdict, every prior round in order, and the
// new argument, with an explicit instruction to reconsider the verdict
// rather than answer the new argument in isolation.
func BuildFollowUpPrompt(c *models.Case, side models.Side, argument string) string {
	var b strings.Builder

	b.WriteString(followUpSystemInstruction)
	b.WriteString("\n\nINITIAL CASE:\nSide A: ")
	b.WriteString(c.Side(models.SideA).CombinedText())
	b.WriteString("\nSide B: ")
	b.WriteString(c.Side(models.SideB).CombinedText())

	b.WriteString("\n\nYOUR INITIAL VERDICT:\n")
	if c.InitialVerdict != nil {
		b.WriteString(*c.InitialVerdict)
	}

	for _, round := range c.FollowUps {
		fmt.Fprintf(&b, "\n\nSide %s argues: %s", round.Side, round.ArgumentText)
		fmt.Fprintf(&b, "\n\nYour response: %s", round.ResponseText)
	}

	fmt.Fprintf(&b, "\n\nSide %s now argues: %s", side, argument)
	b.WriteString("\n\nPlease reconsider your verdict. If this argument changes your perspective, explain why and issue a revised verdict. If not, explain why the original verdict still stands.")

	return b.String()
}

// VerdictCacheKey derives the deterministic verdict key from the two
// side texts. Length framing keeps ("ab","c") and ("a","bc") from
// colliding. Case id and creation time deliberately do not participate:
// two cases arguing the same material share one verdict.
func VerdictCacheKey(sideAText, sideBText string) string {
	h := sha256.New()
	io.WriteString(h, "verdict/v1\n")
	binary.Write(h, binary.BigEndian, uint64(len(sideAText)))
	io.WriteString(h, sideAText)
	binary.Write(h, binary.BigEndian, uint64(len(sideBText)))
	io.WriteString(h, sideBText)
	return hex.EncodeToString(h.Sum(nil))
}
