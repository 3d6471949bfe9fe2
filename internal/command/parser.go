package command

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/workload-runner/internal/model"
)

// minTokens is the required token count per (service, action), service and
// action tokens included.
var minTokens = map[model.Service]map[model.Action]int{
	model.User: {
		model.Create: 6,
		model.Update: 3,
		model.Delete: 3,
		model.Get:    3,
	},
	model.Product: {
		model.Create: 7,
		model.Update: 3,
		model.Delete: 3,
		model.Info:   3,
	},
	model.Order: {
		model.Place: 5,
	},
}

// Parse classifies a single workload line. Blank and comment lines never
// fail. Any error returned is a *ParseError.
func Parse(raw string) (Line, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Line{Kind: Blank}, nil
	}
	if strings.HasPrefix(text, "#") {
		return Line{Kind: Comment, Text: text}, nil
	}

	tokens := strings.Fields(text)
	switch strings.ToLower(tokens[0]) {
	case "restart":
		return Line{Kind: Control, Text: text, Control: Restart}, nil
	case "shutdown":
		return Line{Kind: Control, Text: text, Control: Shutdown}, nil
	}

	svc, ok := model.ParseService(tokens[0])
	if !ok {
		return Line{}, &ParseError{Kind: ErrUnknownService, Line: text, Token: tokens[0]}
	}
	if len(tokens) < 2 {
		return Line{}, &ParseError{Kind: ErrArity, Line: text, Want: 2}
	}
	action, ok := model.ParseAction(svc, tokens[1])
	if !ok {
		return Line{}, &ParseError{Kind: ErrUnknownAction, Line: text, Token: tokens[1]}
	}
	if want := minTokens[svc][action]; len(tokens) < want {
		return Line{}, &ParseError{Kind: ErrArity, Line: text, Want: want}
	}

	p := &args{line: text, tokens: tokens[2:]}
	cmd := build(svc, action, p)
	if p.err != nil {
		return Line{}, p.err
	}
	return Line{Kind: Service, Text: text, Command: cmd}, nil
}

func build(svc model.Service, action model.Action, p *args) model.Command {
	switch svc {
	case model.User:
		switch action {
		case model.Create:
			return model.UserCreate{ID: p.integer(0), Username: p.str(1), Email: p.str(2), Password: p.str(3)}
		case model.Update:
			return model.UserUpdate{ID: p.integer(0), Fields: p.fields(1)}
		case model.Delete:
			return model.UserDelete{ID: p.integer(0), Username: p.opt(1), Email: p.opt(2), Password: p.opt(3)}
		case model.Get:
			return model.UserGet{ID: p.integer(0)}
		}
	case model.Product:
		switch action {
		case model.Create:
			return model.ProductCreate{ID: p.integer(0), Name: p.str(1), Description: p.str(2), Price: p.number(3), Quantity: p.integer(4)}
		case model.Update:
			return p.productUpdate()
		case model.Delete:
			return model.ProductDelete{ID: p.integer(0)}
		case model.Info:
			return model.ProductInfo{ID: p.integer(0)}
		}
	case model.Order:
		return model.OrderPlace{ProductID: p.integer(0), UserID: p.integer(1), Quantity: p.integer(2)}
	}
	panic(fmt.Sprintf("command: no builder for %v %v", svc, action))
}

// args reads positional tokens and remembers the first conversion failure.
type args struct {
	line   string
	tokens []string
	err    *ParseError
}

func (p *args) fail(token string, err error) {
	if p.err == nil {
		p.err = &ParseError{Kind: ErrMalformedArgument, Line: p.line, Token: token, Err: err}
	}
}

func (p *args) str(i int) string {
	return p.tokens[i]
}

func (p *args) opt(i int) string {
	if i < len(p.tokens) {
		return p.tokens[i]
	}
	return ""
}

func (p *args) integer(i int) int {
	return p.parseInt(p.tokens[i])
}

func (p *args) number(i int) float64 {
	return p.parseFloat(p.tokens[i])
}

func (p *args) parseInt(token string) int {
	n, err := strconv.Atoi(token)
	if err != nil {
		p.fail(token, fmt.Errorf("not an integer"))
		return 0
	}
	return n
}

func (p *args) parseFloat(token string) float64 {
	f, err := strconv.ParseFloat(token, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		p.fail(token, fmt.Errorf("not a number"))
		return 0
	}
	return f
}

func (p *args) fields(from int) []model.Field {
	var out []model.Field
	for _, tok := range p.tokens[from:] {
		key, value, ok := strings.Cut(tok, ":")
		if !ok || key == "" {
			p.fail(tok, fmt.Errorf("expected key:value"))
			continue
		}
		out = append(out, model.Field{Key: key, Value: value})
	}
	return out
}

func (p *args) productUpdate() model.ProductUpdate {
	upd := model.ProductUpdate{ID: p.integer(0)}
	for _, f := range p.fields(1) {
		switch f.Key {
		case "price":
			price := p.parseFloat(f.Value)
			upd.Price = &price
		case "quantity":
			qty := p.parseInt(f.Value)
			upd.Quantity = &qty
		default:
			upd.Fields = append(upd.Fields, f)
		}
	}
	return upd
}
