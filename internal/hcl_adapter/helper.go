package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/sweepgrid/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// isExprDefined checks if an HCL expression was actually present in the source
// code. The HCL decoder populates omitted optional fields with a zero-width
// null expression, so a simple nil check is insufficient.
func isExprDefined(ctx context.Context, expr hcl.Expression, attrName string) bool {
	logger := ctxlog.FromContext(ctx)

	if expr == nil {
		logger.Debug("Expression is nil, considering it undefined.", "attribute", attrName)
		return false
	}

	// A real attribute occupies bytes in the file, while a placeholder for an
	// omitted optional attribute has a zero-width range.
	exprRange := expr.Range()
	isDefined := exprRange.End.Byte > exprRange.Start.Byte

	logger.Debug("Checking if HCL attribute was explicitly defined.",
		"attribute", attrName,
		"hcl_range", exprRange.String(),
		"is_defined", isDefined,
	)
	return isDefined
}

// bodyValues evaluates every attribute of a remain body.
func bodyValues(body hcl.Body, evalCtx *hcl.EvalContext) (map[string]cty.Value, hcl.Diagnostics) {
	if body == nil {
		return map[string]cty.Value{}, nil
	}
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	values := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		v, d := attr.Expr.Value(evalCtx)
		diags = append(diags, d...)
		if d.HasErrors() {
			continue
		}
		values[name] = v
	}
	return values, diags
}

// stringList evaluates an expression that must yield a list of strings.
func stringList(expr hcl.Expression, evalCtx *hcl.EvalContext) ([]string, error) {
	v, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, diags
	}
	if v.IsNull() {
		return nil, nil
	}
	if !v.Type().IsListType() && !v.Type().IsTupleType() {
		return nil, fmt.Errorf("must be a list of strings, got %s", v.Type().FriendlyName())
	}
	out := []string{}
	for it := v.ElementIterator(); it.Next(); {
		_, e := it.Element()
		if e.IsNull() || e.Type() != cty.String {
			return nil, fmt.Errorf("must be a list of strings")
		}
		out = append(out, e.AsString())
	}
	return out, nil
}
