package prompt

// Keys of the built-in prompt set. System prompts can be overridden and
// reset but never deleted.
const (
	KeyOutlineSystemRole   = "OUTLINE_SYSTEM_ROLE"
	KeyOutlineTechUser     = "OUTLINE_TECH_USER"
	KeyOutlineScoreUser    = "OUTLINE_SCORE_USER"
	KeyOutlineGenerateUser = "OUTLINE_GENERATE_USER"
	KeyContentSystemRole   = "CONTENT_SYSTEM_ROLE"
	KeyContentSectionUser  = "CONTENT_SECTION_USER"
)

func defaultPrompts() map[string]string {
	return map[string]string{
		KeyOutlineSystemRole: "你是一名资深的投标文件编写专家，擅长根据招标技术要求和评分标准编制投标技术方案大纲。" +
			"你必须只输出一个合法的 JSON 对象，不要输出 Markdown 代码块、解释或任何其他文字。" +
			`JSON 结构为：{"body_paragraphs":[{"chapter_title":"...","sections":[{"section_title":"...","sub_sections":[{"sub_section_title":"...","content_summary":"..."}]}]}]}`,

		KeyOutlineTechUser: "以下是本项目的技术要求，请仔细阅读并记住其中的关键内容：\n\n{{.TechContent}}",

		KeyOutlineScoreUser: "以下是本项目的评分标准，大纲的章节设置需要逐项覆盖评分点：\n\n{{.ScoreContent}}",

		KeyOutlineGenerateUser: "请根据上述技术要求和评分标准，生成完整的投标技术方案大纲。" +
			"要求：章节标题带编号（如 1、1.1、1.1.1）；每个三级标题附 content_summary 说明该节应撰写的内容要点；" +
			"只输出 JSON，不要输出其他任何内容。",

		KeyContentSystemRole: "你是一名资深的投标文件撰写专家，负责根据大纲中的章节标题和内容概要撰写正式、专业、详实的投标技术方案正文。" +
			"输出纯正文文字，不要重复标题，不要输出 JSON 或代码块。",

		KeyContentSectionUser: "请撰写以下章节的正文内容。\n\n章节标题：{{.Title}}\n\n内容概要：{{.ContentSummary}}\n\n" +
			"要求：内容围绕概要展开，语言正式专业，直接输出正文。",
	}
}
