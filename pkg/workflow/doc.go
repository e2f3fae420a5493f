// Package workflow executes note workflows.
//
// An Interpreter runs a workflow's steps one at a time against a variable
// environment that starts as a copy of the caller's initial values. Each
// step's output is merged into that environment so later steps can
// reference earlier results through {{name}} placeholders.
//
// Four step types are supported:
//
//   - template: renders a registry template with the environment and the
//     step's parameters
//   - action: calls a handler from the ActionRegistry
//   - condition: evaluates a boolean expression (see package expression)
//   - loop: runs the step's template, action or condition once per item
//
// Steps are ordered by metadata order by default. GraphScheduler orders them
// by their dependsOn and nextSteps edges instead.
//
// Failures never abort Run with an error. They are collected into the
// ExecutionResult, and a failing step stops the run unless it is optional.
package workflow
