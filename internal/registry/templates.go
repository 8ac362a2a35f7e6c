// SPDX-License-Identifier: MPL-2.0

package registry

// scratchTemplates seed the scratch file created when no path is given.
var scratchTemplates = map[Language]string{
	LanguagePython: `print("Hello, World from Python!")
`,
	LanguageShell: `#!/usr/bin/env bash

echo "Hello, World from Shell!"
`,
	LanguageNode: `console.log("Hello, World from JavaScript!");
`,
	LanguageGo: `package main

import "fmt"

func main() {
	fmt.Println("Hello, World from Go!")
}
`,
	LanguageTypeScript: `const greeting: string = "Hello, World from TypeScript!";
console.log(greeting);
`,
	LanguageRust: `fn main() {
    println!("Hello, World from Rust!");
}
`,
	LanguagePerl: `print "Hello, World from Perl!\n";
`,
	LanguagePHP: `<?php

echo "Hello, World from PHP!\n";
`,
	LanguageRuby: `puts "Hello, World from Ruby!"
`,
	LanguageC: `#include <stdio.h>

int main(void) {
    printf("Hello, World from C!\n");
    return 0;
}
`,
	LanguageCPP: `#include <iostream>

int main() {
    std::cout << "Hello, World from C++!" << std::endl;
    return 0;
}
`,
	LanguageJava: `public class Main {
    public static void main(String[] args) {
        System.out.println("Hello, World from Java!");
    }
}
`,
	LanguageSwift: `print("Hello, World from Swift!")
`,
	LanguageScala: `object Main extends App {
  println("Hello, World from Scala!")
}
`,
	LanguageCSharp: `using System;

class Program {
    static void Main() {
        Console.WriteLine("Hello, World from C#!");
    }
}
`,
}

// ScratchTemplate returns the starter program for a runtime, or an empty
// string for Unsupported.
func (d Descriptor) ScratchTemplate() string {
	return scratchTemplates[d.Language]
}
