package xlog

import (
	"sort"
	"strconv"

	"github.com/omeyang/logkit/middleware/pool"
)

// Ingredient 日志行的组成部分，按数值顺序拼接
type Ingredient int

// 组成部分，顺序即输出顺序
const (
	IngredientChannel Ingredient = iota
	IngredientSeverity
	IngredientDate
	IngredientFunction
	IngredientLine
	IngredientFile
	IngredientPayload
)

// 每个组成部分的前后缀
var decorations = map[Ingredient][2]string{
	IngredientChannel:  {"{", "} "},
	IngredientSeverity: {"[", "] "},
	IngredientDate:     {"⏱ ", " "},
	IngredientFunction: {"🤖 ", ""},
	IngredientLine:     {"(", ") "},
	IngredientFile:     {"📂 ", ":"},
	IngredientPayload:  {" 🔈💬", ""},
}

// DefaultDateLayout 日志行中的时间格式
const DefaultDateLayout = "2006-01-02 15:04:05.000"

// Format 一组组成部分
type Format []Ingredient

// 预置格式
var (
	// FormatStandard 包含全部组成部分
	FormatStandard = Format{IngredientChannel, IngredientSeverity, IngredientDate,
		IngredientFunction, IngredientLine, IngredientFile, IngredientPayload}
	// FormatMinimal 只保留频道、函数名与内容
	FormatMinimal = Format{IngredientChannel, IngredientFunction, IngredientPayload}
	// FormatNaive 不包含任何调用位置
	FormatNaive = Format{IngredientChannel, IngredientSeverity, IngredientPayload}
)

// FormatByName 按名称取预置格式：standard、minimal、naive
func FormatByName(name string) (Format, bool) {
	switch name {
	case "", "standard":
		return FormatStandard, true
	case "minimal":
		return FormatMinimal, true
	case "naive":
		return FormatNaive, true
	default:
		return nil, false
	}
}

// Composer 把 LogMessage 拼装为一行文本
type Composer struct {
	ingredients []Ingredient
	dateLayout  string
	buffers     *pool.BufferPool
}

// NewComposer 创建 Composer；重复的组成部分只保留一次，输出顺序与传入顺序无关
func NewComposer(format Format, dateLayout string) *Composer {
	seen := make(map[Ingredient]bool, len(format))
	ingredients := make([]Ingredient, 0, len(format))
	for _, ing := range format {
		if _, ok := decorations[ing]; !ok || seen[ing] {
			continue
		}
		seen[ing] = true
		ingredients = append(ingredients, ing)
	}
	sort.Slice(ingredients, func(i, j int) bool { return ingredients[i] < ingredients[j] })
	if dateLayout == "" {
		dateLayout = DefaultDateLayout
	}
	return &Composer{
		ingredients: ingredients,
		dateLayout:  dateLayout,
		buffers:     pool.NewBufferPool(256, 64<<10),
	}
}

// Compose 按组成部分拼装日志行
func (c *Composer) Compose(msg LogMessage) string {
	buf := c.buffers.Get()
	defer c.buffers.Put(buf)

	for _, ing := range c.ingredients {
		deco := decorations[ing]
		buf.WriteString(deco[0])
		switch ing {
		case IngredientChannel:
			buf.WriteString(msg.Channel)
		case IngredientSeverity:
			buf.WriteString(msg.Severity.Pretty())
		case IngredientDate:
			buf.WriteString(msg.Time.Format(c.dateLayout))
		case IngredientFunction:
			buf.WriteString(msg.Function)
		case IngredientLine:
			buf.WriteString(strconv.Itoa(msg.Line))
		case IngredientFile:
			buf.WriteString(msg.File)
		case IngredientPayload:
			buf.WriteString(msg.Payload)
		}
		buf.WriteString(deco[1])
	}
	return buf.String()
}

// Brief 精简格式 "[<级别> <文件>:<函数>:<行号>] <内容>"，不含时间，便于 brief 写入器折叠重复行
func Brief(msg LogMessage) string {
	return "[" + msg.Severity.Pretty() + " " + msg.File + ":" + msg.Function + ":" +
		strconv.Itoa(msg.Line) + "] " + msg.Payload
}
