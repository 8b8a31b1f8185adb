package transcribe

// Assemble groups an ordered word sequence into utterance blocks, one block
// per maximal run of consecutive words sharing a speaker tag. It only
// groups: word text and order pass through unchanged, so joining the blocks'
// words in order reproduces the input exactly, and no two adjacent blocks
// carry the same tag.
func Assemble(words []WordEntry) []UtteranceBlock {
	if len(words) == 0 {
		return []UtteranceBlock{}
	}

	var blocks []UtteranceBlock
	cur := UtteranceBlock{
		SpeakerTag: words[0].SpeakerTag,
		Text:       words[0].Text,
	}
	for _, w := range words[1:] {
		if w.SpeakerTag == cur.SpeakerTag {
			cur.Text += " " + w.Text
		} else {
			blocks = append(blocks, cur)
			cur = UtteranceBlock{SpeakerTag: w.SpeakerTag, Text: w.Text}
		}
	}
	return append(blocks, cur)
}
