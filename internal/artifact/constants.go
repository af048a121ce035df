package artifact

// File and directory name constants used throughout folio.
const (
	// SandboxDirName is the directory under the workspace root that all installs are confined to
	SandboxDirName = ".github"

	// AgentsDirName holds agent definitions
	AgentsDirName = "agents"

	// PromptsDirName holds prompt files
	PromptsDirName = "prompts"

	// InstructionsDirName holds scoped instruction files
	InstructionsDirName = "instructions"

	// AlwaysOnFilename is the single always-on instruction file
	AlwaysOnFilename = "copilot-instructions.md"

	AgentSuffix       = ".agent.md"
	PromptSuffix      = ".prompt.md"
	InstructionSuffix = ".instructions.md"
	MarkdownSuffix    = ".md"

	// ReceiptDirName and ReceiptFilename locate the receipt inside the sandbox
	ReceiptDirName  = ".folio"
	ReceiptFilename = "receipt.json"

	// IndexSchemaVersion is the only index schema this build understands
	IndexSchemaVersion = 1

	// ReceiptSchemaVersion is written into every receipt
	ReceiptSchemaVersion = 1
)
