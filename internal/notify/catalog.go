package notify

import (
	"errors"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/roach88/turingloom/internal/machine"
	"github.com/roach88/turingloom/internal/prefs"
)

// Message keys. Keys that take arguments document them.
const (
	KeyHalted          = "halted"
	KeyImported        = "imported"       // %d rules
	KeyTapesExtended   = "tapes_extended" // %d tapes
	KeyDropped         = "dropped"        // %d records
	KeyTapeAdded       = "tape_added"
	KeyTapeDeleted     = "tape_deleted"
	KeyExampleLoaded   = "example_loaded"
	KeyReset           = "reset"
	KeyContentSet      = "content_set"
	KeyExported        = "exported" // %s filename
	KeyNothingToExport = "nothing_to_export"
	KeyLanguage        = "language"
	KeyFailed          = "failed" // %s error text
)

type entry struct {
	zh, en string
}

var entries = map[string]entry{
	KeyHalted:          {"图灵机已停机", "Turing machine halted"},
	KeyImported:        {"成功导入 %d 条规则", "Imported %d rules"},
	KeyTapesExtended:   {"已自动扩展纸带数量至 %d 个", "Tape count extended to %d"},
	KeyDropped:         {"已忽略 %d 条无效规则", "Skipped %d invalid rules"},
	KeyTapeAdded:       {"已添加纸带", "Tape added"},
	KeyTapeDeleted:     {"纸带已删除", "Tape deleted"},
	KeyExampleLoaded:   {"已加载示例规则", "Example rules loaded"},
	KeyReset:           {"图灵机已重置", "Machine reset"},
	KeyContentSet:      {"已应用初始内容", "Initial content applied"},
	KeyExported:        {"规则已导出到 %s", "Rules exported to %s"},
	KeyNothingToExport: {"没有可导出的规则", "No rules to export"},
	KeyLanguage:        {"语言已切换为中文", "Language set to English"},
	KeyFailed:          {"操作失败：%s", "Operation failed: %s"},

	string(machine.ErrCodeInvalidWriteSymbol): {"写入符号必须是单个字符", "Write symbol must be a single character"},
	string(machine.ErrCodeNoMatchingRule):     {"未找到匹配的规则", "No matching rule found"},
	string(machine.ErrCodeTapeNotFound):       {"指定的纸带 %s 不存在", "Tape %s does not exist"},
	string(machine.ErrCodeEmptyImport):        {"导入的规则无效，请检查格式", "The imported rules are invalid, please check the format"},
	string(machine.ErrCodeMalformedImport):    {"导入的规则为空或格式不正确", "The imported rules are empty or malformed"},
	string(machine.ErrCodeLastTapeDeletion):   {"至少需要保留一个纸带", "At least one tape must remain"},
	string(machine.ErrCodeAlreadyHalted):      {"图灵机已停机，请先重置", "The machine is halted, reset it first"},
	string(machine.ErrCodeRuleNotFound):       {"未找到该规则", "Rule not found"},
	string(machine.ErrCodeContentTooLong):     {"初始内容最多 %s 个字符", "Initial content is limited to %s characters"},
}

var cat = func() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, e := range entries {
		if err := b.SetString(language.Chinese, key, e.zh); err != nil {
			panic(err)
		}
		if err := b.SetString(language.English, key, e.en); err != nil {
			panic(err)
		}
	}
	return b
}()

// Messages renders catalog messages in one language.
type Messages struct {
	lang prefs.Language
	p    *message.Printer
}

// Catalog returns the messages for lang.
func Catalog(lang prefs.Language) Messages {
	return Messages{lang: lang, p: message.NewPrinter(lang.Tag(), message.Catalog(cat))}
}

// Language returns the catalog language.
func (m Messages) Language() prefs.Language {
	return m.lang
}

// Text renders the message for key.
func (m Messages) Text(key string, args ...any) string {
	return m.p.Sprintf(key, args...)
}

// Error renders err for the user. Engine errors get their translated
// message; anything else is wrapped in the generic failure message.
func (m Messages) Error(err error) string {
	var me *machine.Error
	if !errors.As(err, &me) {
		return m.Text(KeyFailed, err.Error())
	}
	if _, ok := entries[string(me.Code)]; !ok {
		return m.Text(KeyFailed, me.Message)
	}

	switch me.Code {
	case machine.ErrCodeTapeNotFound:
		return m.Text(string(me.Code), tapeLabel(me.Details))
	case machine.ErrCodeContentTooLong:
		return m.Text(string(me.Code), me.Details["max"])
	default:
		return m.Text(string(me.Code))
	}
}

// tapeLabel shows a 1-based tape number when the error carries an index,
// otherwise the tape id.
func tapeLabel(details map[string]string) string {
	if idx, err := strconv.Atoi(details["tape_index"]); err == nil {
		return strconv.Itoa(idx + 1)
	}
	return details["id"]
}
