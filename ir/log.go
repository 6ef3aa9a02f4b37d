package ir

import "log/slog"

// SlogStmt wraps a Stmt as a slog.LogValuer so statements are only
// rendered when a record actually gets emitted.
func SlogStmt(s Stmt) slog.LogValuer {
	return stmtLogValuer{s}
}

type stmtLogValuer struct{ Stmt }

func (l stmtLogValuer) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("id", int(l.ID())),
		slog.String("kind", l.Kind().String()),
		slog.String("str", StmtString(l.Stmt)),
	)
}
