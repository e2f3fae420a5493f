// Package expression evaluates workflow condition expressions.
//
// Conditions use a deliberately small grammar: literals, variable names,
// member access, comparisons, arithmetic and boolean operators. The grammar
// is enforced on the parsed syntax tree before compilation, so function
// calls, builtins, closures and pipes are rejected and a condition can never
// reach anything beyond the variable environment it is given:
//
//   - Variable access: mood, note.title, tags[0]
//   - Comparisons: ==, !=, <, >, <=, >=
//   - Boolean logic: &&, ||, !, and, or, not
//   - Membership and text: "x" in tags, title contains "draft",
//     title startsWith "Re:", title matches "^[A-Z]"
//   - Ternary: count > 0 ? true : false
//
// {{name}} placeholders are substituted with literals from the environment
// before parsing:
//
//	{{mood}} == "good" && wordCount >= 100
//
// Parsing and compilation use github.com/expr-lang/expr; compiled programs
// are cached per expression string.
package expression
